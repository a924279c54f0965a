package controller

import (
	"encoding/json"
	"errors"
	"strings"

	"adaptive_quiz/internal/quiz"
	"adaptive_quiz/internal/service"
	"adaptive_quiz/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
	Levels          *quiz.Levels
}

func NewQuestionController(questionService *service.QuestionService, levels *quiz.Levels) *QuestionController {
	return &QuestionController{
		QuestionService: questionService,
		Levels:          levels,
	}
}

func (c *QuestionController) handleError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuestionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrInvalidQuestion):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

func questionID(ctx *gin.Context) (uint, bool) {
	id := util.MustParseUint(ctx.Param("id"))
	if id == 0 {
		util.BadRequest(ctx, "invalid question id")
		return 0, false
	}
	return id, true
}

// ListQuestions godoc
// @Summary 题库列表（管理员）
// @Description 按ID倒序分页，可按主题过滤
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Param topic query string false "主题"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	page, limit := util.ParsePage(ctx)
	list, total, err := c.QuestionService.List(ctx.Request.Context(), ctx.Query("topic"), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.NewPage(list, total, page, limit))
}

// GetQuestion godoc
// @Summary 题目详情（管理员）
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response{data=model.Question}
// @Failure 404 {object} util.Response
// @Router /api/admin/questions/{id} [get]
func (c *QuestionController) GetQuestion(ctx *gin.Context) {
	id, ok := questionID(ctx)
	if !ok {
		return
	}
	q, err := c.QuestionService.Get(ctx.Request.Context(), id)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// CreateQuestion godoc
// @Summary 新建题目（管理员）
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.QuestionInput true "题目"
// @Success 201 {object} util.Response{data=model.Question}
// @Failure 400 {object} util.Response
// @Router /api/admin/questions [post]
func (c *QuestionController) CreateQuestion(ctx *gin.Context) {
	var in service.QuestionInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, util.ErrInvalidQuestion.Error())
		return
	}
	q, err := c.QuestionService.Create(ctx.Request.Context(), in)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// UpdateQuestion godoc
// @Summary 修改题目（管理员）
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param body body service.QuestionInput true "题目"
// @Success 200 {object} util.Response{data=model.Question}
// @Router /api/admin/questions/{id} [put]
func (c *QuestionController) UpdateQuestion(ctx *gin.Context) {
	id, ok := questionID(ctx)
	if !ok {
		return
	}
	var in service.QuestionInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, util.ErrInvalidQuestion.Error())
		return
	}
	q, err := c.QuestionService.Update(ctx.Request.Context(), id, in)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// DeleteQuestion godoc
// @Summary 删除题目（管理员）
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [delete]
func (c *QuestionController) DeleteQuestion(ctx *gin.Context) {
	id, ok := questionID(ctx)
	if !ok {
		return
	}
	if err := c.QuestionService.Delete(ctx.Request.Context(), id); err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"ok": true})
}

// ImportQuestions godoc
// @Summary 批量导入题目（管理员）
// @Description 接受题目数组或 {"questions": [...]}，任一题目不合法则全部不导入
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.SeedFile true "题目列表"
// @Success 201 {object} util.Response{data=object}
// @Router /api/admin/questions/import [post]
func (c *QuestionController) ImportQuestions(ctx *gin.Context) {
	body, err := ctx.GetRawData()
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var inputs []service.QuestionInput
	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(body, &inputs)
	} else {
		var file service.SeedFile
		err = json.Unmarshal(body, &file)
		inputs = file.Questions
	}
	if err != nil {
		util.BadRequest(ctx, util.ErrInvalidQuestion.Error())
		return
	}

	n, err := c.QuestionService.Import(ctx.Request.Context(), inputs)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"imported": n})
}

// ExportQuestions godoc
// @Summary 导出题库（管理员）
// @Description 将题库快照写入存储并返回地址
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ExportResult}
// @Router /api/admin/questions/export [post]
func (c *QuestionController) ExportQuestions(ctx *gin.Context) {
	res, err := c.QuestionService.Export(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Bank godoc
// @Summary 题库浏览
// @Description 不含答案，可用 topic 参数（可重复）过滤
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Param topic query []string false "主题"
// @Success 200 {object} util.Response{data=[]service.BankEntry}
// @Router /api/bank [get]
func (c *QuestionController) Bank(ctx *gin.Context) {
	entries, err := c.QuestionService.Bank(ctx.Request.Context(), ctx.QueryArray("topic"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// Topics godoc
// @Summary 主题列表
// @Tags 题库
// @Produce  json
// @Success 200 {object} util.Response{data=[]string}
// @Router /api/topics [get]
func (c *QuestionController) Topics(ctx *gin.Context) {
	topics, err := c.QuestionService.Topics(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, topics)
}

// Schemes godoc
// @Summary 等级体系
// @Description 列出所有等级体系及其分段
// @Tags 题库
// @Produce  json
// @Success 200 {object} util.Response{data=object}
// @Router /api/schemes [get]
func (c *QuestionController) Schemes(ctx *gin.Context) {
	names := c.Levels.Names()
	schemes := make([]gin.H, 0, len(names))
	for _, name := range names {
		schemes = append(schemes, gin.H{"name": name, "bands": c.Levels.Bands(name)})
	}
	util.Success(ctx, gin.H{"default": c.Levels.Resolve(""), "schemes": schemes})
}
