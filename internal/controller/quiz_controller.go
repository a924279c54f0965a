package controller

import (
	"errors"
	"net/http"

	"adaptive_quiz/internal/quiz"
	"adaptive_quiz/internal/service"
	"adaptive_quiz/internal/sessionstore"
	"adaptive_quiz/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// AnswerRequest is the body of an answer submission. A missing choice
// scores as incorrect.
// swagger:model AnswerRequest
type AnswerRequest struct {
	QuestionID  uint `json:"questionId"`
	ChoiceIndex *int `json:"choiceIndex"`
	TimedOut    bool `json:"timedOut"`
}

// PresentedQuestion omits the answer and explanation.
type PresentedQuestion struct {
	ID         uint     `json:"id"`
	Topic      string   `json:"topic"`
	Difficulty int      `json:"difficulty"`
	Question   string   `json:"question"`
	Choices    []string `json:"choices"`
}

type NextResponse struct {
	Done               bool               `json:"done"`
	Index              int                `json:"index,omitempty"`
	NumQuestions       int                `json:"numQuestions,omitempty"`
	SecondsPerQuestion int                `json:"secondsPerQuestion,omitempty"`
	Question           *PresentedQuestion `json:"question,omitempty"`
	Score              int                `json:"score"`
	Level              string             `json:"level,omitempty"`
}

type FeedbackResponse struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	Explain       string `json:"explain"`
}

type AnswerResponse struct {
	Feedback FeedbackResponse `json:"feedback"`
	Score    int              `json:"score"`
	Level    string           `json:"level"`
}

func (c *QuizController) handleError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, quiz.ErrNoQuestionsAvailable):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, quiz.ErrNoActiveSession):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, quiz.ErrStaleQuestion):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, sessionstore.ErrSessionBusy):
		ctx.Header("Retry-After", "1")
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// Start godoc
// @Summary 开始测验
// @Description 替换当前进行中的测验并创建作答记录
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.StartRequest true "测验设置"
// @Success 200 {object} util.Response{data=service.StartResult}
// @Failure 400 {object} util.Response "题库为空"
// @Failure 503 {object} util.Response "测验正被其他请求占用，稍后重试"
// @Router /api/quiz/start [post]
func (c *QuizController) Start(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req service.StartRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	res, err := c.QuizService.Start(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Next godoc
// @Summary 下一题
// @Description 已出题但未作答时返回同一题
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=NextResponse}
// @Failure 404 {object} util.Response "没有进行中的测验"
// @Failure 503 {object} util.Response "测验正被其他请求占用，稍后重试"
// @Router /api/quiz/next [get]
func (c *QuizController) Next(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	p, err := c.QuizService.Next(ctx.Request.Context(), claims.UserID)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	if p == nil {
		util.Success(ctx, gin.H{"done": true})
		return
	}

	q := p.Question
	util.Success(ctx, NextResponse{
		Index:              p.Index,
		NumQuestions:       p.TotalQuestions,
		SecondsPerQuestion: p.SecondsPerQuestion,
		Question: &PresentedQuestion{
			ID:         q.ID,
			Topic:      q.Topic,
			Difficulty: q.Difficulty,
			Question:   q.Prompt,
			Choices:    q.Choices,
		},
		Score: p.Score,
		Level: p.Level,
	})
}

// Answer godoc
// @Summary 提交答案
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body AnswerRequest true "答案"
// @Success 200 {object} util.Response{data=AnswerResponse}
// @Failure 409 {object} util.Response "题目ID与当前题不符"
// @Failure 503 {object} util.Response "测验正被其他请求占用，稍后重试"
// @Router /api/quiz/answer [post]
func (c *QuizController) Answer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	choice := quiz.Timeout
	if req.ChoiceIndex != nil {
		choice = *req.ChoiceIndex
	}

	fb, err := c.QuizService.Answer(ctx.Request.Context(), claims.UserID, req.QuestionID, choice, req.TimedOut)
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	util.Success(ctx, AnswerResponse{
		Feedback: FeedbackResponse{
			Correct:       fb.Correct,
			CorrectAnswer: fb.CorrectAnswer,
			Explain:       fb.Explanation,
		},
		Score: fb.Score,
		Level: fb.Level,
	})
}

// Finish godoc
// @Summary 结束测验
// @Description 写入最终成绩并清除测验
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.FinishResult}
// @Failure 404 {object} util.Response "没有进行中的测验"
// @Failure 503 {object} util.Response "测验正被其他请求占用，稍后重试"
// @Router /api/quiz/finish [post]
func (c *QuizController) Finish(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	res, err := c.QuizService.Finish(ctx.Request.Context(), claims.UserID)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Abandon godoc
// @Summary 放弃测验
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "没有进行中的测验"
// @Failure 503 {object} util.Response "测验正被其他请求占用，稍后重试"
// @Router /api/quiz [delete]
func (c *QuizController) Abandon(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	if err := c.QuizService.Abandon(ctx.Request.Context(), claims.UserID); err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"ok": true})
}

// History godoc
// @Summary 作答历史
// @Description 最近30次作答，按时间倒序
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object}
// @Router /api/history [get]
func (c *QuizController) History(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	attempts, err := c.QuizService.History(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"attempts": attempts})
}
