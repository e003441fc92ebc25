package pg

import (
	"context"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/ports"
)

var _ ports.RunRepository = (*Repository)(nil)

type Repository struct {
	db *gorm.DB
}

func NewRepository(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&domain.Run{}, &domain.SlotResult{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Create(ctx context.Context, run *domain.Run) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(run).Error
}

// GetRun returns nil without error for an unknown id.
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	var run domain.Run
	err := r.db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("slot") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *Repository) Update(ctx context.Context, run *domain.Run) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(run).Error
}

// SaveSlot upserts on (run_id, slot).
func (r *Repository) SaveSlot(ctx context.Context, slot *domain.SlotResult) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "status", "label", "error", "output", "started_at", "finished_at"}),
	}).Create(slot).Error
}

func (r *Repository) DeleteSlots(ctx context.Context, runID string) error {
	return r.db.WithContext(ctx).Where("run_id = ?", runID).Delete(&domain.SlotResult{}).Error
}

func (r *Repository) ListRuns(ctx context.Context, offset, limit int) ([]*domain.Run, error) {
	var runs []*domain.Run
	if err := r.db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *Repository) ListRunsByStatus(ctx context.Context, status domain.RunStatus) ([]*domain.Run, error) {
	var runs []*domain.Run
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at desc").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *Repository) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Run{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DB returns the underlying gorm DB instance
func (r *Repository) DB() (*gorm.DB, error) {
	return r.db, nil
}
