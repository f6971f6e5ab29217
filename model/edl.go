package model

import "time"

// EDL validation outcomes.
const (
	EDLValidated = "validated"
	EDLNoMusic   = "no_music"
	EDLError     = "error"
)

// EDL validation error codes.
const (
	EDLErrNoMusic  = "No music recognized"
	EDLErrSaveFile  = "Failed to save EDL file"
)

// EDLDocument is a persisted edit decision list.
type EDLDocument struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	ProcessID        string     `json:"processId" gorm:"size:36;uniqueIndex"`
	MediaFileID      uint       `json:"mediaFileId" gorm:"index;not null"`
	Name             string     `json:"name" gorm:"size:255"`
	FrameRate        float64    `json:"frameRate"`
	DropFrame        bool       `json:"dropFrame"`
	TotalEvents      int        `json:"totalEvents"`
	ValidationStatus string     `json:"validationStatus" gorm:"size:20"`
	ValidationErrors StringList `json:"validationErrors" gorm:"type:text"`
	Blob             string     `json:"-" gorm:"type:mediumtext"`
	Path             string     `json:"path" gorm:"size:1024"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (EDLDocument) TableName() string {
	return "edl_documents"
}
