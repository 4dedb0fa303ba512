package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quill/internal/middleware"
	"github.com/hitoshi/quill/internal/model"
)

// BlogServiceInterface はブログサービスのインターフェース。
type BlogServiceInterface interface {
	Create(ctx context.Context, authorID string, input *model.BlogCreate) (*model.Blog, error)
	Update(ctx context.Context, userID, blogID string, updates *model.BlogUpdate) (*model.Blog, error)
	Delete(ctx context.Context, userID, blogID string) error
	GetForReader(ctx context.Context, blogID string, viewer *model.User) (*model.BlogWithAuthor, error)
	ListPublished(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error)
	ListByAuthor(ctx context.Context, requesterID, authorID string) ([]*model.Blog, error)
}

// createBlogRequest はPOST /api/blogsのリクエストボディ。
type createBlogRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	Category    string   `json:"category"`
	Theme       string   `json:"theme"`
	Tags        []string `json:"tags"`
	IsPublished bool     `json:"isPublished"`
	MediaURLs   []string `json:"mediaUrls"`
}

// updateBlogRequest はPUT /api/blogs/{blogId}のリクエストボディ。
// 省略されたフィールドは変更されない（オートセーブの部分ペイロードに対応）。
type updateBlogRequest struct {
	Title       *string  `json:"title"`
	Content     *string  `json:"content"`
	Excerpt     *string  `json:"excerpt"`
	Category    *string  `json:"category"`
	Theme       *string  `json:"theme"`
	Tags        []string `json:"tags"`
	IsPublished *bool    `json:"isPublished"`
	MediaURLs   []string `json:"mediaUrls"`
}

// blogResponse はブログのAPIレスポンス表現。
type blogResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Excerpt     string    `json:"excerpt"`
	AuthorID    string    `json:"authorId"`
	Category    string    `json:"category"`
	Theme       string    `json:"theme"`
	Tags        []string  `json:"tags"`
	IsPublished bool      `json:"isPublished"`
	Views       int64     `json:"views"`
	MediaURLs   []string  `json:"mediaUrls"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// blogWithAuthorResponse は著者情報を結合したブログのAPIレスポンス表現。
type blogWithAuthorResponse struct {
	blogResponse
	Author userResponse `json:"author"`
}

// blogEnvelope は単一ブログのレスポンスエンベロープ。
type blogEnvelope struct {
	Blog blogResponse `json:"blog"`
}

// blogWithAuthorEnvelope は著者付き単一ブログのレスポンスエンベロープ。
type blogWithAuthorEnvelope struct {
	Blog blogWithAuthorResponse `json:"blog"`
}

// messageEnvelope は処理結果メッセージのレスポンスエンベロープ。
type messageEnvelope struct {
	Message string `json:"message"`
}

func toBlogResponse(b *model.Blog) blogResponse {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	mediaURLs := b.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	return blogResponse{
		ID:          b.ID,
		Title:       b.Title,
		Content:     b.Content,
		Excerpt:     b.Excerpt,
		AuthorID:    b.AuthorID,
		Category:    b.Category,
		Theme:       b.Theme,
		Tags:        tags,
		IsPublished: b.IsPublished,
		Views:       b.Views,
		MediaURLs:   mediaURLs,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func toBlogWithAuthorResponse(b *model.BlogWithAuthor) blogWithAuthorResponse {
	return blogWithAuthorResponse{
		blogResponse: toBlogResponse(&b.Blog),
		Author:       toUserResponse(&b.Author),
	}
}

// BlogHandler はブログ関連のHTTPハンドラー。
type BlogHandler struct {
	blogService BlogServiceInterface
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(blogService BlogServiceInterface) *BlogHandler {
	return &BlogHandler{blogService: blogService}
}

// CreateBlog はPOST /api/blogsを処理する。認証必須。
func (h *BlogHandler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createBlogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyError(w)
		return
	}

	created, err := h.blogService.Create(r.Context(), userID, &model.BlogCreate{
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		Category:    req.Category,
		Theme:       req.Theme,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
		MediaURLs:   req.MediaURLs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, blogEnvelope{Blog: toBlogResponse(created)})
}

// UpdateBlog はPUT /api/blogs/{blogId}を処理する。著者本人のみ。
func (h *BlogHandler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	blogID := chi.URLParam(r, "blogId")

	var req updateBlogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyError(w)
		return
	}

	updated, err := h.blogService.Update(r.Context(), userID, blogID, &model.BlogUpdate{
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		Category:    req.Category,
		Theme:       req.Theme,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
		MediaURLs:   req.MediaURLs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, blogEnvelope{Blog: toBlogResponse(updated)})
}

// DeleteBlog はDELETE /api/blogs/{blogId}を処理する。著者本人のみ。
// 存在しない場合と著者不一致の場合はどちらも404を返す。
func (h *BlogHandler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	blogID := chi.URLParam(r, "blogId")

	if err := h.blogService.Delete(r.Context(), userID, blogID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageEnvelope{Message: "ブログを削除しました。"})
}

// GetBlog はGET /api/blogs/{blogId}を処理する。認証は任意。
// 公開済みは誰でも閲覧でき、閲覧数が1回加算される。
// 下書きは著者本人のみ閲覧できる。
func (h *BlogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	blogID := chi.URLParam(r, "blogId")
	viewer, _ := middleware.UserFromContext(r.Context())

	found, err := h.blogService.GetForReader(r.Context(), blogID, viewer)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, blogWithAuthorEnvelope{Blog: toBlogWithAuthorResponse(found)})
}

// ListBlogs はGET /api/blogsを処理する。公開済みブログの一覧を返す。
func (h *BlogHandler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")

	blogs, err := h.blogService.ListPublished(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]blogWithAuthorResponse, 0, len(blogs))
	for _, b := range blogs {
		items = append(items, toBlogWithAuthorResponse(b))
	}

	writeJSON(w, http.StatusOK, map[string][]blogWithAuthorResponse{"blogs": items})
}

// ListUserBlogs はGET /api/user/{userId}/blogsを処理する。
// 認証必須で、自分のブログ一覧（下書き含む）のみ取得できる。
func (h *BlogHandler) ListUserBlogs(w http.ResponseWriter, r *http.Request) {
	requesterID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	authorID := chi.URLParam(r, "userId")

	blogs, err := h.blogService.ListByAuthor(r.Context(), requesterID, authorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]blogResponse, 0, len(blogs))
	for _, b := range blogs {
		items = append(items, toBlogResponse(b))
	}

	writeJSON(w, http.StatusOK, map[string][]blogResponse{"blogs": items})
}

// writeInvalidBodyError は不正なJSONボディに対する400を書き込む。
func writeInvalidBodyError(w http.ResponseWriter) {
	apiErr := model.NewValidationError([]model.FieldViolation{
		{Field: "body", Message: "リクエストボディのJSONが不正です"},
	})
	writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
}

// queryInt はクエリパラメータを整数として解釈する。欠落・不正値は0を返す。
func queryInt(r *http.Request, key string) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
