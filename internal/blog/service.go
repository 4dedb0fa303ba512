// Package blog はブログ記事のドメインロジックを提供する。
// 公開範囲の判定、著者による所有権チェック、デフォルト値の正規化、
// 閲覧数の加算をここで行う。
package blog

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/quill/internal/metrics"
	"github.com/hitoshi/quill/internal/model"
	"github.com/hitoshi/quill/internal/repository"
	"github.com/hitoshi/quill/internal/security"
)

const (
	maxTitleLength    = 255
	maxCategoryLength = 100
	maxThemeLength    = 50
)

// Service はブログに関するビジネスロジックを提供する。
type Service struct {
	blogRepo  repository.BlogRepository
	sanitizer security.ContentSanitizerService
	collector metrics.MetricsCollector

	defaultPageLimit int
	maxPageLimit     int
}

// NewService はServiceを生成する。
func NewService(
	blogRepo repository.BlogRepository,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
	defaultPageLimit int,
	maxPageLimit int,
) *Service {
	return &Service{
		blogRepo:         blogRepo,
		sanitizer:        sanitizer,
		collector:        collector,
		defaultPageLimit: defaultPageLimit,
		maxPageLimit:     maxPageLimit,
	}
}

// Create はブログを作成する。
// contentはサニタイズされ、excerpt未指定時はサニタイズ後の本文から自動生成する。
func (s *Service) Create(ctx context.Context, authorID string, input *model.BlogCreate) (*model.Blog, error) {
	if violations := validateCreate(input); len(violations) > 0 {
		return nil, model.NewValidationError(violations)
	}

	input.AuthorID = authorID
	input.Content = s.sanitizer.Sanitize(input.Content)
	if input.Excerpt == "" {
		input.Excerpt = excerptFromHTML(input.Content)
	}

	created, err := s.blogRepo.Create(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create blog: %w", err)
	}

	s.collector.RecordBlogCreated()
	if created.IsPublished {
		s.collector.RecordBlogPublished()
	}

	slog.Info("blog created",
		slog.String("blog_id", created.ID),
		slog.String("author_id", authorID),
		slog.Bool("is_published", created.IsPublished),
	)

	return created, nil
}

// Update は著者本人によるブログの部分更新を行う。
// 指定のないフィールドは変更されない（オートセーブの部分ペイロードに対応）。
// contentが更新され、excerptの明示指定がない場合はexcerptを再生成する。
func (s *Service) Update(ctx context.Context, userID, blogID string, updates *model.BlogUpdate) (*model.Blog, error) {
	if violations := validateUpdate(updates); len(violations) > 0 {
		return nil, model.NewValidationError(violations)
	}

	existing, err := s.blogRepo.FindByID(ctx, blogID)
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if existing == nil {
		return nil, model.NewBlogNotFoundError(blogID)
	}
	if existing.AuthorID != userID {
		return nil, model.NewAccessDeniedError()
	}

	if updates.Content != nil {
		sanitized := s.sanitizer.Sanitize(*updates.Content)
		updates.Content = &sanitized
		if updates.Excerpt == nil {
			excerpt := excerptFromHTML(sanitized)
			updates.Excerpt = &excerpt
		}
	}

	updated, err := s.blogRepo.Update(ctx, blogID, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update blog: %w", err)
	}
	if updated == nil {
		// FindByIDとUpdateの間で削除された場合
		return nil, model.NewBlogNotFoundError(blogID)
	}

	// 下書き→公開の遷移を記録
	if !existing.IsPublished && updated.IsPublished {
		s.collector.RecordBlogPublished()
	}

	return updated, nil
}

// Delete は著者本人によるブログ削除を行う。
// 存在しない場合と著者不一致の場合はどちらもBLOG_NOT_FOUNDを返し、
// 他人のブログの存在を漏らさない。
func (s *Service) Delete(ctx context.Context, userID, blogID string) error {
	deleted, err := s.blogRepo.Delete(ctx, blogID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete blog: %w", err)
	}
	if !deleted {
		return model.NewBlogNotFoundError(blogID)
	}

	slog.Info("blog deleted",
		slog.String("blog_id", blogID),
		slog.String("author_id", userID),
	)

	return nil
}

// GetForReader は閲覧者に応じたブログ取得を行う。
//   - 公開済み: 誰でも閲覧でき、閲覧数をちょうど1回加算する。
//   - 下書き: 著者本人のみ閲覧できる（加算なし）。
//     それ以外にはBLOG_NOT_FOUNDを返し、下書きの存在を漏らさない。
//
// viewerは未認証の場合nil。
func (s *Service) GetForReader(ctx context.Context, blogID string, viewer *model.User) (*model.BlogWithAuthor, error) {
	found, err := s.blogRepo.FindByIDWithAuthor(ctx, blogID)
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if found == nil {
		return nil, model.NewBlogNotFoundError(blogID)
	}

	if !found.IsPublished {
		if viewer == nil || viewer.ID != found.AuthorID {
			return nil, model.NewBlogNotFoundError(blogID)
		}
		return found, nil
	}

	if err := s.blogRepo.IncrementViews(ctx, blogID); err != nil {
		// 閲覧数の加算失敗で読者への応答は壊さない
		slog.Warn("failed to increment blog views",
			slog.String("blog_id", blogID),
			slog.String("error", err.Error()),
		)
	} else {
		found.Views++
		s.collector.RecordBlogView()
	}

	return found, nil
}

// ListPublished は公開済みブログの一覧をページネーション付きで返す。
// limitは[1, maxPageLimit]にクランプされ、0以下はデフォルト値になる。
func (s *Service) ListPublished(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error) {
	if limit <= 0 {
		limit = s.defaultPageLimit
	}
	if limit > s.maxPageLimit {
		limit = s.maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	blogs, err := s.blogRepo.ListPublished(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list published blogs: %w", err)
	}

	return blogs, nil
}

// ListByAuthor は著者本人のブログ一覧（下書き含む）を返す。
// 他人のIDを指定した場合はACCESS_DENIEDを返す。
func (s *Service) ListByAuthor(ctx context.Context, requesterID, authorID string) ([]*model.Blog, error) {
	if requesterID != authorID {
		return nil, model.NewAccessDeniedError()
	}

	blogs, err := s.blogRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blogs by author: %w", err)
	}

	return blogs, nil
}

// validateCreate は作成入力のバリデーションを行う。
func validateCreate(input *model.BlogCreate) []model.FieldViolation {
	var violations []model.FieldViolation

	if input.Title == "" {
		violations = append(violations, model.FieldViolation{
			Field: "title", Message: "タイトルは必須です",
		})
	} else if utf8.RuneCountInString(input.Title) > maxTitleLength {
		violations = append(violations, model.FieldViolation{
			Field: "title", Message: fmt.Sprintf("タイトルは%d文字以内で指定してください", maxTitleLength),
		})
	}

	if input.Content == "" {
		violations = append(violations, model.FieldViolation{
			Field: "content", Message: "本文は必須です",
		})
	}

	if utf8.RuneCountInString(input.Category) > maxCategoryLength {
		violations = append(violations, model.FieldViolation{
			Field: "category", Message: fmt.Sprintf("カテゴリは%d文字以内で指定してください", maxCategoryLength),
		})
	}

	if utf8.RuneCountInString(input.Theme) > maxThemeLength {
		violations = append(violations, model.FieldViolation{
			Field: "theme", Message: fmt.Sprintf("テーマは%d文字以内で指定してください", maxThemeLength),
		})
	}

	return violations
}

// validateUpdate は部分更新入力のバリデーションを行う。
// 指定されたフィールドのみを検査する。
func validateUpdate(updates *model.BlogUpdate) []model.FieldViolation {
	var violations []model.FieldViolation

	if updates.Title != nil {
		if *updates.Title == "" {
			violations = append(violations, model.FieldViolation{
				Field: "title", Message: "タイトルは必須です",
			})
		} else if utf8.RuneCountInString(*updates.Title) > maxTitleLength {
			violations = append(violations, model.FieldViolation{
				Field: "title", Message: fmt.Sprintf("タイトルは%d文字以内で指定してください", maxTitleLength),
			})
		}
	}

	if updates.Content != nil && *updates.Content == "" {
		violations = append(violations, model.FieldViolation{
			Field: "content", Message: "本文は必須です",
		})
	}

	if updates.Category != nil && utf8.RuneCountInString(*updates.Category) > maxCategoryLength {
		violations = append(violations, model.FieldViolation{
			Field: "category", Message: fmt.Sprintf("カテゴリは%d文字以内で指定してください", maxCategoryLength),
		})
	}

	if updates.Theme != nil && utf8.RuneCountInString(*updates.Theme) > maxThemeLength {
		violations = append(violations, model.FieldViolation{
			Field: "theme", Message: fmt.Sprintf("テーマは%d文字以内で指定してください", maxThemeLength),
		})
	}

	return violations
}
