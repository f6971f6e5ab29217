package model

import "time"

// AudioTrack is one distinct recognized piece of music inside a MediaFile.
// Rows are never updated once created.
type AudioTrack struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	MediaFileID uint         `json:"mediaFileId" gorm:"index;not null"`
	Name        string       `json:"name" gorm:"size:255"`
	Artist      string       `json:"artist" gorm:"size:255"`
	Album       string       `json:"album" gorm:"size:255"`
	Year        string       `json:"year" gorm:"size:16"`
	Authors     StringList   `json:"authors" gorm:"type:text"`
	Genres      StringList   `json:"genres" gorm:"type:text"`
	ISRC        string       `json:"isrc" gorm:"column:isrc;size:32"`
	ImageURL    string       `json:"imageUrl" gorm:"size:1024"`
	Occurrences []Occurrence `json:"occurrences,omitempty" gorm:"foreignKey:AudioTrackID"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// TableName 指定表名
func (AudioTrack) TableName() string {
	return "audio_tracks"
}

// Occurrence is a time range, in milliseconds, where a track was heard.
type Occurrence struct {
	ID           uint  `json:"id" gorm:"primaryKey"`
	AudioTrackID uint  `json:"audioTrackId" gorm:"index;not null"`
	StartTime    int64 `json:"startTime" gorm:"not null"`
	EndTime      int64 `json:"endTime" gorm:"not null"`
}

// TableName 指定表名
func (Occurrence) TableName() string {
	return "occurrences"
}

// TrackTiming is the span covered by all occurrences of one AudioTrack.
type TrackTiming struct {
	AudioTrackID uint  `json:"audioTrackId"`
	StartTime    int64 `json:"startTime"`
	EndTime      int64 `json:"endTime"`
}
