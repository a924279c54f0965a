package repository

import (
	"context"
	"time"

	"adaptive_quiz/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AttemptRepository) FindByID(ctx context.Context, id uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).First(&a, id).Error
	return &a, err
}

// Finish records the outcome on the attempt owned by userID.
func (r *AttemptRepository) Finish(ctx context.Context, id, userID uint, score int, level string, details datatypes.JSON, finishedAt time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"finished_at": finishedAt,
			"final_score": score,
			"final_level": level,
			"details":     details,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByUser returns the latest attempts of userID, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.Attempt, error) {
	var as []model.Attempt
	err := r.DB.WithContext(ctx).
		Omit("details").
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Find(&as).Error
	return as, err
}
