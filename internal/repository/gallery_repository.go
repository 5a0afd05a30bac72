package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plaque-dashboard/internal/domain/gallery"
)

type GalleryRepository struct {
	db *gorm.DB
}

func NewGalleryRepository(db *gorm.DB) *GalleryRepository {
	return &GalleryRepository{db: db}
}

// GallerySnapshot holds the whole item list of one namespace as a JSON blob.
type GallerySnapshot struct {
	Namespace string         `gorm:"primaryKey"`
	Items     datatypes.JSON `gorm:"type:jsonb;not null"`
	Version   int64          `gorm:"not null"`
	UpdatedAt time.Time
}

func (GallerySnapshot) TableName() string {
	return "gallery_snapshots"
}

// LoadSnapshot returns found=false when nothing was saved for the namespace yet.
func (r *GalleryRepository) LoadSnapshot(ctx context.Context, namespace string) ([]gallery.Item, bool, error) {
	var snap GallerySnapshot
	err := r.db.WithContext(ctx).Where("namespace = ?", namespace).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []gallery.Item
	if err := json.Unmarshal(snap.Items, &items); err != nil {
		return nil, false, fmt.Errorf("decode gallery snapshot: %w", err)
	}
	return items, true, nil
}

func (r *GalleryRepository) SaveSnapshot(ctx context.Context, namespace string, items []gallery.Item) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode gallery snapshot: %w", err)
	}

	snap := GallerySnapshot{
		Namespace: namespace,
		Items:     datatypes.JSON(payload),
		Version:   1,
		UpdatedAt: time.Now(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "namespace"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"items":      snap.Items,
				"version":    gorm.Expr("gallery_snapshots.version + 1"),
				"updated_at": snap.UpdatedAt,
			}),
		}).
		Create(&snap).Error
}

// MemoryGalleryRepository keeps snapshots for the life of the process.
// Used when no database is configured.
type MemoryGalleryRepository struct {
	mu        sync.Mutex
	snapshots map[string][]byte
}

func NewMemoryGalleryRepository() *MemoryGalleryRepository {
	return &MemoryGalleryRepository{snapshots: make(map[string][]byte)}
}

func (r *MemoryGalleryRepository) LoadSnapshot(_ context.Context, namespace string) ([]gallery.Item, bool, error) {
	r.mu.Lock()
	payload, ok := r.snapshots[namespace]
	r.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	var items []gallery.Item
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, false, fmt.Errorf("decode gallery snapshot: %w", err)
	}
	return items, true, nil
}

func (r *MemoryGalleryRepository) SaveSnapshot(_ context.Context, namespace string, items []gallery.Item) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode gallery snapshot: %w", err)
	}

	r.mu.Lock()
	r.snapshots[namespace] = payload
	r.mu.Unlock()
	return nil
}
