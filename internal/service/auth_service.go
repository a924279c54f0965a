package service

import (
	"context"
	"errors"
	"strings"

	"adaptive_quiz/internal/config"
	"adaptive_quiz/internal/model"
	"adaptive_quiz/internal/repository"
	"adaptive_quiz/internal/util"
	"adaptive_quiz/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

// Register creates a learner account and returns it with a fresh token.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, string, error) {
	username = strings.TrimSpace(username)
	if len(username) < MinUsernameLength {
		return nil, "", util.ErrUsernameTooShort
	}
	if len(password) < MinPasswordLength {
		return nil, "", util.ErrPasswordTooShort
	}

	exists, err := s.UserRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", util.ErrUsernameTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	user := &model.User{
		Username: username,
		Password: string(hashedPassword),
		Role:     model.RoleUser,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, "", err
	}
	logger.Log.Info("User registered", zap.Uint("userID", user.ID), zap.String("username", user.Username))
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.UserRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", util.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetCurrentUser reloads the caller from the database, nil when the
// request is anonymous or the account no longer exists.
func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, err := s.UserRepo.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return nil
	}
	return user
}

// EnsureAdmin creates the bootstrap admin account unless an admin already
// exists. An empty password disables the bootstrap.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	username := strings.TrimSpace(s.Cfg.Admin.Username)
	password := s.Cfg.Admin.Password
	if username == "" || password == "" {
		logger.Log.Warn("Admin bootstrap skipped: admin.username or admin.password is empty")
		return nil
	}

	existing, err := s.UserRepo.FindFirstByRole(ctx, model.Admin)
	if err == nil {
		logger.Log.Info("Admin already exists", zap.String("username", existing.Username))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user, err := s.UserRepo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		// 同名普通用户直接提升为管理员
		user.Role = model.Admin
		user.Password = string(hashedPassword)
		err = s.UserRepo.Update(ctx, user)
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = &model.User{Username: username, Password: string(hashedPassword), Role: model.Admin}
		err = s.UserRepo.Create(ctx, user)
	}
	if err != nil {
		return err
	}

	logger.Log.Info("Admin user created", zap.String("username", username))
	return nil
}
