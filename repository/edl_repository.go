package repository

import (
	"context"
	"errors"
	"fmt"

	"mxfedl/model"

	"gorm.io/gorm"
)

// EDLRepository EDL 文档数据访问接口
type EDLRepository interface {
	Create(ctx context.Context, doc *model.EDLDocument) error
	// Confirm replaces the provisional validation outcome and records where the
	// artifact was written. A document is confirmed at most once.
	Confirm(ctx context.Context, id uint, status string, errs []string, path string) error
	GetByID(ctx context.Context, id uint) (*model.EDLDocument, error)
}

type gormEDLRepository struct {
	db *gorm.DB
}

// NewGormEDLRepository 创建 GORM EDL 仓库
func NewGormEDLRepository(db *gorm.DB) EDLRepository {
	return &gormEDLRepository{db: db}
}

func (r *gormEDLRepository) Create(ctx context.Context, doc *model.EDLDocument) error {
	if doc.ValidationErrors == nil {
		doc.ValidationErrors = model.StringList{}
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create EDL document %s: %w", doc.Name, err)
	}
	return nil
}

func (r *gormEDLRepository) Confirm(ctx context.Context, id uint, status string, errs []string, path string) error {
	list := model.StringList(errs)
	if list == nil {
		list = model.StringList{}
	}
	err := r.db.WithContext(ctx).Model(&model.EDLDocument{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"validation_status": status,
			"validation_errors": list,
			"path":              path,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to confirm EDL document %d: %w", id, err)
	}
	return nil
}

// GetByID returns nil, nil when the row does not exist.
func (r *gormEDLRepository) GetByID(ctx context.Context, id uint) (*model.EDLDocument, error) {
	var doc model.EDLDocument
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get EDL document %d: %w", id, err)
	}
	return &doc, nil
}
