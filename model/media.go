package model

import "time"

// MediaStatus is the lifecycle state of a MediaFile.
type MediaStatus string

const (
	MediaStatusPending    MediaStatus = "pending"
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusNoWorkflow MediaStatus = "no_workflow"
	MediaStatusError      MediaStatus = "error"
	MediaStatusProcessed  MediaStatus = "processed"
)

// Terminal reports whether no further transition is allowed from s.
func (s MediaStatus) Terminal() bool {
	switch s {
	case MediaStatusNoWorkflow, MediaStatusError, MediaStatusProcessed:
		return true
	}
	return false
}

// MediaFile is an ingested container file.
type MediaFile struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	FileName    string       `json:"fileName" gorm:"size:255;not null"`
	Locator     string       `json:"locator" gorm:"size:1024;not null"` // local path or minio://bucket/key
	Status      MediaStatus  `json:"status" gorm:"size:20;default:'pending';index"`
	EDLID       *uint        `json:"edlId,omitempty" gorm:"column:edl_id"`
	AudioTracks []AudioTrack `json:"audioTracks,omitempty" gorm:"foreignKey:MediaFileID"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TableName 指定表名
func (MediaFile) TableName() string {
	return "media_files"
}
