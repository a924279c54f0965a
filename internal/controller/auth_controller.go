package controller

import (
	"errors"
	"net/http"

	"adaptive_quiz/internal/service"
	"adaptive_quiz/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// CredentialsRequest is the body of register and login.
// swagger:model CredentialsRequest
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register godoc
// @Summary 注册新用户
// @Description 用户名至少3个字符，密码至少6个字符
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body CredentialsRequest true "用户名与密码"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "用户名已存在"
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req CredentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "username + password required")
		return
	}

	user, token, err := c.AuthService.Register(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUsernameTaken):
			util.Conflict(ctx, err.Error())
		case errors.Is(err, util.ErrUsernameTooShort), errors.Is(err, util.ErrPasswordTooShort):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, gin.H{"token": token, "user": user})
}

// Login godoc
// @Summary 用户登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body CredentialsRequest true "用户名与密码"
// @Success 200 {object} util.Response{data=object} "登录成功"
// @Failure 401 {object} util.Response "用户名或密码错误"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req CredentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.Error(ctx, http.StatusUnauthorized, util.ErrInvalidCredentials.Error())
		return
	}

	user, token, err := c.AuthService.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, util.ErrInvalidCredentials) {
			util.Error(ctx, http.StatusUnauthorized, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout godoc
// @Summary 退出登录
// @Description 令牌无状态，客户端丢弃即可
// @Tags 认证
// @Produce  json
// @Success 200 {object} util.Response
// @Router /api/auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	util.Success(ctx, gin.H{"ok": true})
}

// Me godoc
// @Summary 当前用户
// @Description 未登录时 user 为 null
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object}
// @Router /api/auth/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	util.Success(ctx, gin.H{"user": c.AuthService.GetCurrentUser(ctx)})
}
