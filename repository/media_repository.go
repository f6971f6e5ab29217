package repository

import (
	"context"
	"errors"
	"fmt"

	"mxfedl/model"

	"gorm.io/gorm"
)

// MediaRepository MediaFile 数据访问接口
type MediaRepository interface {
	Create(ctx context.Context, media *model.MediaFile) error
	GetByID(ctx context.Context, id uint) (*model.MediaFile, error)
	GetWithTracks(ctx context.Context, id uint) (*model.MediaFile, error)
	List(ctx context.Context, limit, offset int) ([]*model.MediaFile, error)

	// TransitionStatus moves id from one status to another only if it is still
	// in from. It reports whether the row was changed.
	TransitionStatus(ctx context.Context, id uint, from, to model.MediaStatus) (bool, error)
	// MarkFailed forces error unless the file already reached a terminal status.
	MarkFailed(ctx context.Context, id uint) error
	// Complete finishes a processing file with the given status and EDL link.
	Complete(ctx context.Context, id uint, status model.MediaStatus, edlID *uint) error
}

type gormMediaRepository struct {
	db *gorm.DB
}

// NewGormMediaRepository 创建 GORM MediaFile 仓库
func NewGormMediaRepository(db *gorm.DB) MediaRepository {
	return &gormMediaRepository{db: db}
}

func (r *gormMediaRepository) Create(ctx context.Context, media *model.MediaFile) error {
	if media.Status == "" {
		media.Status = model.MediaStatusPending
	}
	if err := r.db.WithContext(ctx).Create(media).Error; err != nil {
		return fmt.Errorf("failed to create media file %s: %w", media.FileName, err)
	}
	return nil
}

// GetByID returns nil, nil when the row does not exist.
func (r *gormMediaRepository) GetByID(ctx context.Context, id uint) (*model.MediaFile, error) {
	var media model.MediaFile
	err := r.db.WithContext(ctx).First(&media, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get media file %d: %w", id, err)
	}
	return &media, nil
}

func (r *gormMediaRepository) GetWithTracks(ctx context.Context, id uint) (*model.MediaFile, error) {
	var media model.MediaFile
	err := r.db.WithContext(ctx).
		Preload("AudioTracks", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("AudioTracks.Occurrences", func(db *gorm.DB) *gorm.DB { return db.Order("start_time ASC, id ASC") }).
		First(&media, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get media file %d with tracks: %w", id, err)
	}
	return &media, nil
}

func (r *gormMediaRepository) List(ctx context.Context, limit, offset int) ([]*model.MediaFile, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var files []*model.MediaFile
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list media files: %w", err)
	}
	return files, nil
}

func (r *gormMediaRepository) TransitionStatus(ctx context.Context, id uint, from, to model.MediaStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.MediaFile{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to move media file %d from %s to %s: %w", id, from, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormMediaRepository) MarkFailed(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&model.MediaFile{}).
		Where("id = ? AND status IN ?", id, []model.MediaStatus{model.MediaStatusPending, model.MediaStatusProcessing}).
		Update("status", model.MediaStatusError).Error
	if err != nil {
		return fmt.Errorf("failed to mark media file %d as error: %w", id, err)
	}
	return nil
}

func (r *gormMediaRepository) Complete(ctx context.Context, id uint, status model.MediaStatus, edlID *uint) error {
	updates := map[string]interface{}{"status": status}
	if edlID != nil {
		updates["edl_id"] = *edlID
	}
	res := r.db.WithContext(ctx).Model(&model.MediaFile{}).
		Where("id = ? AND status = ?", id, model.MediaStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to complete media file %d: %w", id, res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("media file %d is no longer processing", id)
	}
	return nil
}
