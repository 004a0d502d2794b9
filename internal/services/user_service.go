// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Krosebrook/lovable-prompt-artist/internal/auth"
	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

// AuthResult 注册/登录结果
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"`
	User      *models.User `json:"user"`
}

// UserService 账号注册、登录与令牌校验
type UserService struct {
	users  storage.Users
	tokens *auth.TokenConfig
	logger *utils.Logger
	now    func() time.Time
}

func NewUserService(store *storage.Store, tokens *auth.TokenConfig) *UserService {
	return &UserService{
		users:  store.Users,
		tokens: tokens,
		logger: utils.GetLogger(),
		now:    time.Now,
	}
}

// Register 创建账号并签发令牌
func (s *UserService) Register(ctx context.Context, creds validation.Credentials) (*AuthResult, error) {
	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("hash password", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        creds.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperrors.NewConflictError("An account with this email already exists", err)
		}
		return nil, apperrors.NewInternalError("create user", err)
	}

	s.logger.Info("用户已注册", map[string]interface{}{"user_id": user.ID})
	return s.issue(user)
}

// Login 校验密码并签发令牌，邮箱不存在与密码错误返回相同错误
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewUnauthorizedError(auth.ErrBadPassword.Error(), nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load user", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorizedError(auth.ErrBadPassword.Error(), nil)
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(user.ID, user.Email, s.tokens)
	if err != nil {
		return nil, apperrors.NewInternalError("issue token", err)
	}
	parsed, err := auth.ParseToken(token, s.tokens)
	if err != nil {
		return nil, apperrors.NewInternalError("issue token", err)
	}
	return &AuthResult{Token: token, ExpiresAt: parsed.ExpiresAt, User: user}, nil
}

// Authenticate 校验 Bearer 令牌
func (s *UserService) Authenticate(token string) (*auth.Token, error) {
	parsed, err := auth.ParseToken(token, s.tokens)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.NewUnauthorizedError("Token has expired", err)
		}
		return nil, apperrors.NewUnauthorizedError("Invalid token", err)
	}
	return parsed, nil
}

// Me 当前用户
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewUnauthorizedError("User no longer exists", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load user", err)
	}
	return user, nil
}
