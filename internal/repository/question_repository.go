package repository

import (
	"context"

	"adaptive_quiz/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

// CreateBatch inserts all questions in one transaction.
func (r *QuestionRepository) CreateBatch(ctx context.Context, qs []model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&qs, 100).Error
	})
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).First(&q, id).Error
	return &q, err
}

func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Save(q).Error
}

// Delete reports gorm.ErrRecordNotFound when no row matched.
func (r *QuestionRepository) Delete(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&model.Question{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List pages through the bank newest first, optionally restricted to topic.
func (r *QuestionRepository) List(ctx context.Context, topic string, page, limit int) ([]model.Question, int64, error) {
	var qs []model.Question
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.Question{})
	if topic != "" {
		query = query.Where("topic = ?", topic)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("id desc").Offset(offset).Limit(limit).Find(&qs).Error
	return qs, total, err
}

// ListByTopics returns the whole bank, or only the given topics when any
// are passed.
func (r *QuestionRepository) ListByTopics(ctx context.Context, topics []string) ([]model.Question, error) {
	var qs []model.Question
	query := r.DB.WithContext(ctx).Model(&model.Question{})
	if len(topics) > 0 {
		query = query.Where("topic IN ?", topics)
	}
	err := query.Order("id asc").Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) Topics(ctx context.Context) ([]string, error) {
	var topics []string
	err := r.DB.WithContext(ctx).Model(&model.Question{}).
		Distinct("topic").
		Order("topic asc").
		Pluck("topic", &topics).Error
	return topics, err
}

func (r *QuestionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Question{}).Count(&count).Error
	return count, err
}
