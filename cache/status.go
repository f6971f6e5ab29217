package cache

import (
	"context"
	"time"

	"mxfedl/model"
)

// StatusEvent announces a MediaFile status change.
type StatusEvent struct {
	MediaID uint              `json:"mediaId"`
	Status  model.MediaStatus `json:"status"`
	EDLID   *uint             `json:"edlId,omitempty"`
	Error   string            `json:"error,omitempty"`
	At      time.Time         `json:"at"`
}

// StatusPublisher fans status events out to interested readers.
type StatusPublisher interface {
	Publish(ctx context.Context, ev StatusEvent) error
	// Subscribe delivers events for mediaID until cancel is called or ctx ends.
	Subscribe(ctx context.Context, mediaID uint) (events <-chan StatusEvent, cancel func(), err error)
}
