package repository

import (
	"context"
	"fmt"
	"strings"

	"mxfedl/model"

	"gorm.io/gorm"
)

// TrackRepository 音轨与出现时间数据访问接口
type TrackRepository interface {
	// SaveRecognitions stores one AudioTrack per distinct identity among results
	// plus its occurrences, and writes the new track id back into each result.
	SaveRecognitions(ctx context.Context, mediaID uint, results []*model.RecognitionResult) error
	ListByMedia(ctx context.Context, mediaID uint) ([]*model.AudioTrack, error)
	// Timings returns the earliest start and latest end per AudioTrack of a media file.
	Timings(ctx context.Context, mediaID uint) (map[uint]model.TrackTiming, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 音轨仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// TrackIdentity is ISRC when known, otherwise the case-folded artist and title.
func TrackIdentity(r *model.RecognitionResult) string {
	if isrc := strings.TrimSpace(r.ISRC); isrc != "" {
		return "isrc:" + strings.ToUpper(isrc)
	}
	return "name:" + strings.ToLower(strings.TrimSpace(r.Artist)) + "|" + strings.ToLower(strings.TrimSpace(r.Title))
}

// OccurrencesFor derives the time ranges a single recognition covers.
func OccurrencesFor(r *model.RecognitionResult) []model.Occurrence {
	var base int64
	if r.SegmentOffsetMs != nil {
		base = *r.SegmentOffsetMs
	}
	span := r.SegmentDurationMs
	if span < 0 {
		span = 0
	}
	if len(r.RawMatches) == 0 {
		return []model.Occurrence{{StartTime: base, EndTime: base + span}}
	}
	out := make([]model.Occurrence, 0, len(r.RawMatches))
	for _, m := range r.RawMatches {
		start := base + int64(m.Offset*1000)
		if start < 0 {
			start = 0
		}
		out = append(out, model.Occurrence{StartTime: start, EndTime: start + span})
	}
	return out
}

func (r *gormTrackRepository) SaveRecognitions(ctx context.Context, mediaID uint, results []*model.RecognitionResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byIdentity := make(map[string]uint)
		for _, res := range results {
			if !res.Recognized() {
				continue
			}
			key := TrackIdentity(res)
			trackID, ok := byIdentity[key]
			if !ok {
				track := trackFromResult(mediaID, res)
				if err := tx.Create(track).Error; err != nil {
					return fmt.Errorf("failed to create audio track %q: %w", res.Title, err)
				}
				trackID = track.ID
				byIdentity[key] = trackID
			}

			occs := OccurrencesFor(res)
			for i := range occs {
				occs[i].AudioTrackID = trackID
			}
			if err := tx.Create(&occs).Error; err != nil {
				return fmt.Errorf("failed to create occurrences for track %d: %w", trackID, err)
			}

			id := trackID
			res.AudioTrackID = &id
		}
		return nil
	})
}

func trackFromResult(mediaID uint, res *model.RecognitionResult) *model.AudioTrack {
	track := &model.AudioTrack{
		MediaFileID: mediaID,
		Name:        res.Title,
		Artist:      res.Artist,
		Album:       res.Album,
		Year:        res.ReleaseDate,
		Authors:     model.StringList{},
		Genres:      model.StringList{},
		ISRC:        res.ISRC,
		ImageURL:    res.CoverArtURL,
	}
	if res.Artist != "" {
		track.Authors = append(track.Authors, res.Artist)
	}
	if res.Genre != "" {
		track.Genres = append(track.Genres, res.Genre)
	}
	return track
}

func (r *gormTrackRepository) ListByMedia(ctx context.Context, mediaID uint) ([]*model.AudioTrack, error) {
	var tracks []*model.AudioTrack
	err := r.db.WithContext(ctx).
		Preload("Occurrences", func(db *gorm.DB) *gorm.DB { return db.Order("start_time ASC, id ASC") }).
		Where("media_file_id = ?", mediaID).
		Order("id ASC").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audio tracks for media file %d: %w", mediaID, err)
	}
	return tracks, nil
}

func (r *gormTrackRepository) Timings(ctx context.Context, mediaID uint) (map[uint]model.TrackTiming, error) {
	var rows []model.TrackTiming
	err := r.db.WithContext(ctx).
		Table("occurrences").
		Select("occurrences.audio_track_id AS audio_track_id, MIN(occurrences.start_time) AS start_time, MAX(occurrences.end_time) AS end_time").
		Joins("JOIN audio_tracks ON audio_tracks.id = occurrences.audio_track_id").
		Where("audio_tracks.media_file_id = ?", mediaID).
		Group("occurrences.audio_track_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load track timings for media file %d: %w", mediaID, err)
	}
	out := make(map[uint]model.TrackTiming, len(rows))
	for _, row := range rows {
		out[row.AudioTrackID] = row
	}
	return out, nil
}
