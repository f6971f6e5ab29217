package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one gorm session.
type Store struct {
	Media  MediaRepository
	Tracks TrackRepository
	EDL    EDLRepository
}

// NewStore builds a Store on db as given.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Media:  NewGormMediaRepository(db),
		Tracks: NewGormTrackRepository(db),
		EDL:    NewGormEDLRepository(db),
	}
}

// OpenSession returns a Store bound to a fresh session of db.
// Every background job opens its own and never hands it to another goroutine.
func OpenSession(ctx context.Context, db *gorm.DB) *Store {
	return NewStore(db.Session(&gorm.Session{NewDB: true, Context: ctx}))
}
