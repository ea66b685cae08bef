package service

import (
	"context"
	"errors"
	"strings"

	"doc-tracker/internal/model"
	"doc-tracker/internal/repository"
	"doc-tracker/pkg/utils"
)

var ErrOwnerNotFound = errors.New("owner not found")

// AuthService 为文档所有者签发访问统计接口用的令牌，账号本身由其他系统管理
type AuthService struct {
	userRepo *repository.UserRepository
}

// 创建一个新的认证服务实例
func NewAuthService(userRepo *repository.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// 按邮箱签发令牌
func (s *AuthService) IssueOwnerToken(ctx context.Context, email string) (string, *model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil, ErrOwnerNotFound
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrOwnerNotFound
	}

	// 生成JWT令牌
	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// 校验令牌并返回所有者
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, claims.OwnerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrOwnerNotFound
	}
	return user, nil
}
