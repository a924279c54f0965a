package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"adaptive_quiz/internal/model"
	"adaptive_quiz/internal/quiz"
	"adaptive_quiz/internal/repository"
	"adaptive_quiz/internal/util"
	"adaptive_quiz/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuestionInput is the admin payload for creating, updating or importing
// a question.
type QuestionInput struct {
	Topic       string   `json:"topic"`
	Difficulty  int      `json:"difficulty"`
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex *int     `json:"answerIndex"`
	Explain     string   `json:"explain"`
}

// BankEntry is a question as shown to learners, without its answer.
type BankEntry struct {
	ID         uint     `json:"id"`
	Topic      string   `json:"topic"`
	Difficulty int      `json:"difficulty"`
	Question   string   `json:"question"`
	Choices    []string `json:"choices"`
}

// SeedFile is the on-disk format read by seeding and written by export.
type SeedFile struct {
	ExportedAt *time.Time      `json:"exportedAt,omitempty"`
	Questions  []QuestionInput `json:"questions"`
}

type ExportResult struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Count    int    `json:"count"`
}

type QuestionService struct {
	QuestionRepo *repository.QuestionRepository
	Storage      *StorageService
}

func NewQuestionService(questionRepo *repository.QuestionRepository, storage *StorageService) *QuestionService {
	return &QuestionService{
		QuestionRepo: questionRepo,
		Storage:      storage,
	}
}

func invalidQuestion(reason string) error {
	return fmt.Errorf("%w: %s", util.ErrInvalidQuestion, reason)
}

// toModel validates in and fills q. Difficulty is clamped to [1,5], zero
// meaning 1.
func (in QuestionInput) toModel(q *model.Question) error {
	topic := strings.TrimSpace(in.Topic)
	prompt := strings.TrimSpace(in.Question)
	if topic == "" {
		return invalidQuestion("topic is required")
	}
	if prompt == "" {
		return invalidQuestion("question is required")
	}
	if len(in.Choices) < 2 {
		return invalidQuestion("at least 2 choices are required")
	}
	if in.AnswerIndex == nil || *in.AnswerIndex < 0 || *in.AnswerIndex >= len(in.Choices) {
		return invalidQuestion("answerIndex out of range")
	}

	difficulty := in.Difficulty
	if difficulty == 0 {
		difficulty = quiz.MinDifficulty
	}
	if difficulty < quiz.MinDifficulty {
		difficulty = quiz.MinDifficulty
	}
	if difficulty > quiz.MaxDifficulty {
		difficulty = quiz.MaxDifficulty
	}

	q.Topic = topic
	q.Difficulty = difficulty
	q.Prompt = prompt
	q.Choices = append([]string(nil), in.Choices...)
	q.AnswerIndex = *in.AnswerIndex
	q.Explanation = strings.TrimSpace(in.Explain)
	return nil
}

func fromModel(q model.Question) QuestionInput {
	answer := q.AnswerIndex
	return QuestionInput{
		Topic:       q.Topic,
		Difficulty:  q.Difficulty,
		Question:    q.Prompt,
		Choices:     append([]string(nil), q.Choices...),
		AnswerIndex: &answer,
		Explain:     q.Explanation,
	}
}

func (s *QuestionService) List(ctx context.Context, topic string, page, limit int) ([]model.Question, int64, error) {
	return s.QuestionRepo.List(ctx, strings.TrimSpace(topic), page, limit)
}

func (s *QuestionService) Get(ctx context.Context, id uint) (*model.Question, error) {
	q, err := s.QuestionRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	return q, err
}

func (s *QuestionService) Create(ctx context.Context, in QuestionInput) (*model.Question, error) {
	var q model.Question
	if err := in.toModel(&q); err != nil {
		return nil, err
	}
	if err := s.QuestionRepo.Create(ctx, &q); err != nil {
		return nil, err
	}
	logger.Log.Info("Question created", zap.Uint("questionID", q.ID), zap.String("topic", q.Topic))
	return &q, nil
}

func (s *QuestionService) Update(ctx context.Context, id uint, in QuestionInput) (*model.Question, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.toModel(q); err != nil {
		return nil, err
	}
	if err := s.QuestionRepo.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) Delete(ctx context.Context, id uint) error {
	err := s.QuestionRepo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrQuestionNotFound
	}
	if err == nil {
		logger.Log.Info("Question deleted", zap.Uint("questionID", id))
	}
	return err
}

// Import validates every entry first and inserts none if any is invalid.
func (s *QuestionService) Import(ctx context.Context, inputs []QuestionInput) (int, error) {
	if len(inputs) == 0 {
		return 0, invalidQuestion("no questions to import")
	}
	qs := make([]model.Question, len(inputs))
	for i, in := range inputs {
		if err := in.toModel(&qs[i]); err != nil {
			return 0, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	if err := s.QuestionRepo.CreateBatch(ctx, qs); err != nil {
		return 0, err
	}
	logger.Log.Info("Questions imported", zap.Int("count", len(qs)))
	return len(qs), nil
}

// SeedIfEmpty imports the questions in path when the bank has none. It
// returns the number of questions inserted.
func (s *QuestionService) SeedIfEmpty(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	count, err := s.QuestionRepo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	return s.Seed(ctx, path)
}

// Seed imports every question in the JSON file at path.
func (s *QuestionService) Seed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var file SeedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return s.Import(ctx, file.Questions)
}

// Bank lists the questions learners may browse, optionally by topics.
func (s *QuestionService) Bank(ctx context.Context, topics []string) ([]BankEntry, error) {
	qs, err := s.QuestionRepo.ListByTopics(ctx, topics)
	if err != nil {
		return nil, err
	}
	entries := make([]BankEntry, 0, len(qs))
	for _, q := range qs {
		entries = append(entries, BankEntry{
			ID:         q.ID,
			Topic:      q.Topic,
			Difficulty: q.Difficulty,
			Question:   q.Prompt,
			Choices:    append([]string(nil), q.Choices...),
		})
	}
	return entries, nil
}

func (s *QuestionService) Topics(ctx context.Context) ([]string, error) {
	return s.QuestionRepo.Topics(ctx)
}

// LoadBank returns the session form of the bank restricted to topics.
func (s *QuestionService) LoadBank(ctx context.Context, topics []string) ([]quiz.Question, error) {
	qs, err := s.QuestionRepo.ListByTopics(ctx, topics)
	if err != nil {
		return nil, err
	}
	bank := make([]quiz.Question, 0, len(qs))
	for _, q := range qs {
		bank = append(bank, q.ToQuiz())
	}
	return bank, nil
}

// Export writes a snapshot of the whole bank, in the seed file format, to
// the storage provider.
func (s *QuestionService) Export(ctx context.Context) (*ExportResult, error) {
	qs, err := s.QuestionRepo.ListByTopics(ctx, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	file := SeedFile{ExportedAt: &now, Questions: make([]QuestionInput, 0, len(qs))}
	for _, q := range qs {
		file.Questions = append(file.Questions, fromModel(q))
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("question-bank-%s.json", now.Format("20060102-150405"))
	url, err := s.Storage.UploadBytes(ctx, filename, data, util.MimeJSON)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Question bank exported", zap.String("filename", filename), zap.Int("count", len(qs)))
	return &ExportResult{Filename: filename, URL: url, Count: len(qs)}, nil
}
