// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/hitoshi/quill/internal/model"
	"github.com/hitoshi/quill/internal/repository"
)

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
	}
}

// RegisterInput はRegisterの入力。
type RegisterInput struct {
	Email string
	Name  string
}

// Register はユーザーを登録する。冪等であり、同一メールアドレスでの
// 再登録は既存ユーザーをそのまま返す（エラーにしない）。
func (s *Service) Register(ctx context.Context, input *RegisterInput) (*model.User, error) {
	if violations := validateRegister(input); len(violations) > 0 {
		return nil, model.NewValidationError(violations)
	}

	existing, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	created, err := s.userRepo.Create(ctx, &model.User{
		Email: input.Email,
		Name:  input.Name,
	})
	if err != nil {
		// FindByEmailとCreateの間に同一メールで登録された場合は
		// 既存ユーザーを引き直して冪等性を保つ
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeDuplicateEmail {
			raced, findErr := s.userRepo.FindByEmail(ctx, input.Email)
			if findErr == nil && raced != nil {
				return raced, nil
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", created.ID),
		slog.String("email", created.Email),
	)

	return created, nil
}

// Get は指定IDのユーザーを取得する。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}

	return user, nil
}

// validateRegister は登録入力のバリデーションを行う。
func validateRegister(input *RegisterInput) []model.FieldViolation {
	var violations []model.FieldViolation

	if input.Email == "" {
		violations = append(violations, model.FieldViolation{
			Field: "email", Message: "メールアドレスは必須です",
		})
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		violations = append(violations, model.FieldViolation{
			Field: "email", Message: "メールアドレスの形式が不正です",
		})
	}

	if strings.TrimSpace(input.Name) == "" {
		violations = append(violations, model.FieldViolation{
			Field: "name", Message: "名前は必須です",
		})
	}

	return violations
}
