package recognize

import (
	"strings"

	"mxfedl/model"
)

// shazamResponse is the subset of a Shazam-style recognition payload we read.
type shazamResponse struct {
	Matches []struct {
		Offset     float64 `json:"offset"`
		Confidence float64 `json:"confidence"`
	} `json:"matches"`
	Track *struct {
		Title       string `json:"title"`
		Subtitle    string `json:"subtitle"`
		ISRC        string `json:"isrc"`
		URL         string `json:"url"`
		ReleaseDate string `json:"release_date"`
		Label       string `json:"label"`
		DurationMs  int64  `json:"duration_ms"`
		Genres      struct {
			Primary string `json:"primary"`
		} `json:"genres"`
		Images struct {
			CoverArt   string `json:"coverart"`
			CoverArtHQ string `json:"coverarthq"`
		} `json:"images"`
		Sections []struct {
			Type     string `json:"type"`
			Metadata []struct {
				Title string `json:"title"`
				Text  string `json:"text"`
			} `json:"metadata"`
		} `json:"sections"`
		Hub struct {
			Artists []struct {
				Alias string `json:"alias"`
			} `json:"artists"`
		} `json:"hub"`
	} `json:"track"`
}

const maxRelatedArtists = 5

// toResult maps a payload to a RecognitionResult, or nil when nothing matched.
func (s *shazamResponse) toResult() *model.RecognitionResult {
	if s.Track == nil {
		return nil
	}
	t := s.Track
	res := &model.RecognitionResult{
		Title:       orUnknown(t.Title),
		Artist:      orUnknown(t.Subtitle),
		ISRC:        t.ISRC,
		Genre:       t.Genres.Primary,
		ReleaseDate: t.ReleaseDate,
		Label:       t.Label,
		DurationMs:  t.DurationMs,
		URL:         t.URL,
		CoverArtURL: t.Images.CoverArt,
	}
	if res.CoverArtURL == "" {
		res.CoverArtURL = t.Images.CoverArtHQ
	}

	if len(t.Sections) > 0 {
		for _, meta := range t.Sections[0].Metadata {
			if meta.Title == "Album" || meta.Title == "Álbum" {
				res.Album = meta.Text
				break
			}
		}
	}

	for i, a := range t.Hub.Artists {
		if i >= maxRelatedArtists {
			break
		}
		if a.Alias != "" {
			res.RelatedArtists = append(res.RelatedArtists, a.Alias)
		}
	}

	for _, m := range s.Matches {
		res.RawMatches = append(res.RawMatches, model.RawMatch{Offset: m.Offset, Confidence: m.Confidence})
	}
	if len(s.Matches) > 0 {
		res.Confidence = s.Matches[0].Confidence * 100
	}
	return res
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.UnknownTitle
	}
	return s
}
