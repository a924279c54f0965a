package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adaptive_quiz/internal/model"
	"adaptive_quiz/internal/quiz"
	"adaptive_quiz/internal/sessionstore"
	"adaptive_quiz/internal/util"
	"adaptive_quiz/pkg/logger"
	"adaptive_quiz/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// BankLoader supplies the questions a new session draws from.
type BankLoader interface {
	LoadBank(ctx context.Context, topics []string) ([]quiz.Question, error)
}

// AttemptStore persists attempts. Satisfied by *repository.AttemptRepository.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	Finish(ctx context.Context, id, userID uint, score int, level string, details datatypes.JSON, finishedAt time.Time) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]model.Attempt, error)
}

// QuizMetrics receives quiz events. Satisfied by monitoring.QuizRecorder.
type QuizMetrics interface {
	SessionStarted(mode string)
	AnswerRecorded(correct, timedOut bool)
	SessionFinished(level string, score int)
}

type nopMetrics struct{}

func (nopMetrics) SessionStarted(string)       {}
func (nopMetrics) AnswerRecorded(bool, bool)   {}
func (nopMetrics) SessionFinished(string, int) {}

type StartRequest struct {
	Mode               string   `json:"mode"`
	EducationSystem    string   `json:"educationSystem"`
	NumQuestions       int      `json:"numQuestions"`
	SecondsPerQuestion int      `json:"secondsPerQuestion"`
	Topics             []string `json:"topics"`
}

type StartResult struct {
	AttemptID          uint   `json:"attemptId"`
	SessionID          string `json:"sessionId"`
	Mode               string `json:"mode"`
	EducationSystem    string `json:"educationSystem"`
	NumQuestions       int    `json:"numQuestions"`
	SecondsPerQuestion int    `json:"secondsPerQuestion"`
}

type FinishResult struct {
	FinalScore     int                  `json:"finalScore"`
	FinalLevel     string               `json:"finalLevel"`
	TopicBreakdown []quiz.TopicResult   `json:"topicBreakdown"`
	Details        model.AttemptDetails `json:"details"`
}

type QuizService struct {
	Engine   *quiz.Engine
	Bank     BankLoader
	Attempts AttemptStore
	Sessions sessionstore.Store
	Metrics  QuizMetrics

	locks *keyedMutex
	now   func() time.Time
}

func NewQuizService(engine *quiz.Engine, bank BankLoader, attempts AttemptStore, sessions sessionstore.Store, metrics QuizMetrics) *QuizService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &QuizService{
		Engine:   engine,
		Bank:     bank,
		Attempts: attempts,
		Sessions: sessions,
		Metrics:  metrics,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

func startSpan(ctx context.Context, name string, userID uint) (context.Context, trace.Span) {
	ctx, span := tracing.Tracer.Start(ctx, name)
	span.SetAttributes(attribute.Int64("quiz.user_id", int64(userID)))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// lock serializes userID's operations in this process, and across
// processes when the session store is shared.
func (s *QuizService) lock(ctx context.Context, userID uint) (func(), error) {
	unlock := s.locks.Lock(userID)
	locker, ok := s.Sessions.(sessionstore.Locker)
	if !ok {
		return unlock, nil
	}
	release, err := locker.Lock(ctx, userID)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

// Start opens a new session for userID, replacing any session in progress,
// and records the attempt.
func (s *QuizService) Start(ctx context.Context, userID uint, req StartRequest) (res *StartResult, err error) {
	ctx, span := startSpan(ctx, "quiz.Start", userID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	bank, err := s.Bank.LoadBank(ctx, req.Topics)
	if err != nil {
		return nil, fmt.Errorf("load bank: %w", err)
	}

	state, err := s.Engine.Start(userID, bank, quiz.Settings{
		Mode:               req.Mode,
		Scheme:             req.EducationSystem,
		TotalQuestions:     req.NumQuestions,
		SecondsPerQuestion: req.SecondsPerQuestion,
	})
	if err != nil {
		return nil, err
	}
	state.StartedAt = s.now()

	attempt := &model.Attempt{
		UserID:             userID,
		SessionID:          state.ID,
		Mode:               state.Mode,
		EducationSystem:    state.Scheme,
		NumQuestions:       state.TotalQuestions,
		SecondsPerQuestion: state.SecondsPerQuestion,
		StartedAt:          state.StartedAt,
	}
	if err := s.Attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	state.AttemptID = attempt.ID

	if err := s.Sessions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	span.SetAttributes(
		attribute.String("quiz.session_id", state.ID),
		attribute.Int("quiz.bank_size", len(bank)),
	)
	s.Metrics.SessionStarted(state.Mode)
	logger.Log.Info("Quiz started",
		zap.Uint("userID", userID),
		zap.Uint("attemptID", attempt.ID),
		zap.String("sessionID", state.ID),
		zap.String("mode", state.Mode),
		zap.String("scheme", state.Scheme),
		zap.Int("numQuestions", state.TotalQuestions),
		zap.Int("bankSize", len(bank)),
	)

	return &StartResult{
		AttemptID:          attempt.ID,
		SessionID:          state.ID,
		Mode:               state.Mode,
		EducationSystem:    state.Scheme,
		NumQuestions:       state.TotalQuestions,
		SecondsPerQuestion: state.SecondsPerQuestion,
	}, nil
}

// Next presents the next question. A nil result means the session has no
// more questions to give.
func (s *QuizService) Next(ctx context.Context, userID uint) (p *quiz.Presented, err error) {
	ctx, span := startSpan(ctx, "quiz.Next", userID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.Sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending := state.CurrentQuestionID
	p = s.Engine.Next(state)
	if p == nil {
		return nil, nil
	}
	if state.CurrentQuestionID != pending {
		if err := s.Sessions.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}
	span.SetAttributes(attribute.Int64("quiz.question_id", int64(p.Question.ID)))
	return p, nil
}

// Answer scores the answer to the presented question. timedOut overrides
// choice.
func (s *QuizService) Answer(ctx context.Context, userID, questionID uint, choice int, timedOut bool) (fb *quiz.Feedback, err error) {
	ctx, span := startSpan(ctx, "quiz.Answer", userID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.Sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if timedOut {
		choice = quiz.Timeout
	}
	fb, err = s.Engine.Answer(state, questionID, choice)
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	span.SetAttributes(attribute.Bool("quiz.correct", fb.Correct))
	s.Metrics.AnswerRecorded(fb.Correct, timedOut)
	logger.Log.Debug("Quiz answer",
		zap.Uint("userID", userID),
		zap.Uint("questionID", questionID),
		zap.Bool("correct", fb.Correct),
		zap.Bool("timedOut", timedOut),
		zap.Int("score", fb.Score),
	)
	return fb, nil
}

// Finish records the outcome on the attempt and clears the session. The
// session survives a failed write so the call can be retried.
func (s *QuizService) Finish(ctx context.Context, userID uint) (res *FinishResult, err error) {
	ctx, span := startSpan(ctx, "quiz.Finish", userID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.Sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := s.Engine.Finish(state)
	details := model.AttemptDetails{
		TopicStats: make(map[string]model.TopicStatDetail, len(state.TopicStats)),
		Asked:      append([]uint{}, state.Asked...),
		Mode:       state.Mode,
	}
	for name, t := range state.TopicStats {
		details.TopicStats[name] = model.TopicStatDetail{Correct: t.Correct, Total: t.Attempts, Score: t.Score}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}

	err = s.Attempts.Finish(ctx, state.AttemptID, userID, result.FinalScore, result.FinalLevel, datatypes.JSON(raw), s.now())
	if err != nil {
		return nil, fmt.Errorf("finish attempt %d: %w", state.AttemptID, err)
	}
	if err := s.Sessions.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear session: %w", err)
	}

	s.Metrics.SessionFinished(result.FinalLevel, result.FinalScore)
	logger.Log.Info("Quiz finished",
		zap.Uint("userID", userID),
		zap.Uint("attemptID", state.AttemptID),
		zap.Int("finalScore", result.FinalScore),
		zap.String("finalLevel", result.FinalLevel),
		zap.Int("answered", len(state.Asked)),
	)

	return &FinishResult{
		FinalScore:     result.FinalScore,
		FinalLevel:     result.FinalLevel,
		TopicBreakdown: result.Topics,
		Details:        details,
	}, nil
}

// Abandon drops the session in progress. The attempt stays unfinished.
func (s *QuizService) Abandon(ctx context.Context, userID uint) (err error) {
	ctx, span := startSpan(ctx, "quiz.Abandon", userID)
	defer func() { endSpan(span, err) }()

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := s.Sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Sessions.Delete(ctx, userID); err != nil {
		return err
	}
	logger.Log.Info("Quiz abandoned", zap.Uint("userID", userID), zap.Uint("attemptID", state.AttemptID))
	return nil
}

// History lists the latest attempts of userID, newest first.
func (s *QuizService) History(ctx context.Context, userID uint) ([]model.Attempt, error) {
	return s.Attempts.ListByUser(ctx, userID, util.HistoryLimit)
}

