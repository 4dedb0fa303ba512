package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quill/internal/middleware"
	"github.com/hitoshi/quill/internal/model"
)

// --- モック定義 ---

// mockBlogService はBlogServiceInterfaceのモック実装。
type mockBlogService struct {
	createFn        func(ctx context.Context, authorID string, input *model.BlogCreate) (*model.Blog, error)
	updateFn        func(ctx context.Context, userID, blogID string, updates *model.BlogUpdate) (*model.Blog, error)
	deleteFn        func(ctx context.Context, userID, blogID string) error
	getForReaderFn  func(ctx context.Context, blogID string, viewer *model.User) (*model.BlogWithAuthor, error)
	listPublishedFn func(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error)
	listByAuthorFn  func(ctx context.Context, requesterID, authorID string) ([]*model.Blog, error)
}

func (m *mockBlogService) Create(ctx context.Context, authorID string, input *model.BlogCreate) (*model.Blog, error) {
	if m.createFn != nil {
		return m.createFn(ctx, authorID, input)
	}
	return nil, nil
}

func (m *mockBlogService) Update(ctx context.Context, userID, blogID string, updates *model.BlogUpdate) (*model.Blog, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, blogID, updates)
	}
	return nil, nil
}

func (m *mockBlogService) Delete(ctx context.Context, userID, blogID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, blogID)
	}
	return nil
}

func (m *mockBlogService) GetForReader(ctx context.Context, blogID string, viewer *model.User) (*model.BlogWithAuthor, error) {
	if m.getForReaderFn != nil {
		return m.getForReaderFn(ctx, blogID, viewer)
	}
	return nil, nil
}

func (m *mockBlogService) ListPublished(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error) {
	if m.listPublishedFn != nil {
		return m.listPublishedFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockBlogService) ListByAuthor(ctx context.Context, requesterID, authorID string) ([]*model.Blog, error) {
	if m.listByAuthorFn != nil {
		return m.listByAuthorFn(ctx, requesterID, authorID)
	}
	return nil, nil
}

// --- テストヘルパー ---

// withUser はテスト用にリクエストコンテキストに認証済みユーザーを注入するヘルパー。
func withUser(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUser(r.Context(), &model.User{ID: userID})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// decodeErrorResponse はエラーレスポンスのボディをパースするヘルパー。
func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var body apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func testBlog(id, authorID string) *model.Blog {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.Blog{
		ID:          id,
		Title:       "Goの並行処理",
		Content:     "<p>goroutineとchannelの話。</p>",
		Excerpt:     "goroutineとchannelの話。",
		AuthorID:    authorID,
		Category:    "tech",
		Theme:       model.DefaultTheme,
		Tags:        []string{"go"},
		IsPublished: true,
		Views:       3,
		MediaURLs:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// --- POST /api/blogs ---

func TestBlogHandler_CreateBlog_Success(t *testing.T) {
	svc := &mockBlogService{
		createFn: func(ctx context.Context, authorID string, input *model.BlogCreate) (*model.Blog, error) {
			if authorID != "user-123" {
				t.Errorf("authorID = %q, want %q", authorID, "user-123")
			}
			if input.Title != "Goの並行処理" {
				t.Errorf("title = %q", input.Title)
			}
			if !input.IsPublished {
				t.Error("isPublished should be true")
			}
			return testBlog("blog-1", authorID), nil
		},
	}
	h := NewBlogHandler(svc)

	body := `{"title": "Goの並行処理", "content": "<p>goroutineとchannelの話。</p>", "isPublished": true, "tags": ["go"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/blogs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateBlog(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var result blogEnvelope
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Blog.ID != "blog-1" {
		t.Errorf("blog.id = %q, want blog-1", result.Blog.ID)
	}
	if result.Blog.AuthorID != "user-123" {
		t.Errorf("blog.authorId = %q, want user-123", result.Blog.AuthorID)
	}
}

func TestBlogHandler_CreateBlog_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewBlogHandler(&mockBlogService{})

	req := httptest.NewRequest(http.MethodPost, "/api/blogs", bytes.NewBufferString("{not json"))
	req = withUser(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateBlog(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	body := decodeErrorResponse(t, w)
	if body.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidationFailed)
	}
}

func TestBlogHandler_CreateBlog_NoUser_ReturnsUnauthorized(t *testing.T) {
	h := NewBlogHandler(&mockBlogService{})

	req := httptest.NewRequest(http.MethodPost, "/api/blogs", bytes.NewBufferString(`{"title": "t", "content": "c"}`))
	w := httptest.NewRecorder()

	h.CreateBlog(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// バリデーションエラーのフィールド違反がerrorsとして返ることを検証する。
func TestBlogHandler_CreateBlog_ValidationError_IncludesViolations(t *testing.T) {
	svc := &mockBlogService{
		createFn: func(ctx context.Context, authorID string, input *model.BlogCreate) (*model.Blog, error) {
			return nil, model.NewValidationError([]model.FieldViolation{
				{Field: "title", Message: "タイトルは必須です"},
			})
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/blogs", bytes.NewBufferString(`{"content": "c"}`))
	req = withUser(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateBlog(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeErrorResponse(t, w)
	if len(body.Errors) != 1 || body.Errors[0].Field != "title" {
		t.Errorf("errors = %+v, want title violation", body.Errors)
	}
}

// --- PUT /api/blogs/{blogId} ---

func TestBlogHandler_UpdateBlog_PartialPayload(t *testing.T) {
	svc := &mockBlogService{
		updateFn: func(ctx context.Context, userID, blogID string, updates *model.BlogUpdate) (*model.Blog, error) {
			if userID != "user-123" || blogID != "blog-1" {
				t.Errorf("userID = %q, blogID = %q", userID, blogID)
			}
			if updates.Title == nil || *updates.Title != "新タイトル" {
				t.Errorf("title = %v, want 新タイトル", updates.Title)
			}
			// 省略されたフィールドはnilのまま渡る
			if updates.Content != nil {
				t.Errorf("content should be nil, got %v", *updates.Content)
			}
			if updates.Tags != nil {
				t.Errorf("tags should be nil, got %v", updates.Tags)
			}
			return testBlog(blogID, userID), nil
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/blogs/blog-1", bytes.NewBufferString(`{"title": "新タイトル"}`))
	req = withUser(req, "user-123")
	req = withChiURLParam(req, "blogId", "blog-1")
	w := httptest.NewRecorder()

	h.UpdateBlog(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestBlogHandler_UpdateBlog_AccessDenied_ReturnsForbidden(t *testing.T) {
	svc := &mockBlogService{
		updateFn: func(ctx context.Context, userID, blogID string, updates *model.BlogUpdate) (*model.Blog, error) {
			return nil, model.NewAccessDeniedError()
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/blogs/blog-1", bytes.NewBufferString(`{"title": "t"}`))
	req = withUser(req, "other-user")
	req = withChiURLParam(req, "blogId", "blog-1")
	w := httptest.NewRecorder()

	h.UpdateBlog(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	body := decodeErrorResponse(t, w)
	if body.Code != model.ErrCodeAccessDenied {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeAccessDenied)
	}
}

func TestBlogHandler_UpdateBlog_NotFound_ReturnsNotFound(t *testing.T) {
	svc := &mockBlogService{
		updateFn: func(ctx context.Context, userID, blogID string, updates *model.BlogUpdate) (*model.Blog, error) {
			return nil, model.NewBlogNotFoundError(blogID)
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/blogs/missing", bytes.NewBufferString(`{"title": "t"}`))
	req = withUser(req, "user-123")
	req = withChiURLParam(req, "blogId", "missing")
	w := httptest.NewRecorder()

	h.UpdateBlog(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- DELETE /api/blogs/{blogId} ---

func TestBlogHandler_DeleteBlog_Success(t *testing.T) {
	svc := &mockBlogService{
		deleteFn: func(ctx context.Context, userID, blogID string) error {
			if userID != "user-123" || blogID != "blog-1" {
				t.Errorf("userID = %q, blogID = %q", userID, blogID)
			}
			return nil
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/blogs/blog-1", nil)
	req = withUser(req, "user-123")
	req = withChiURLParam(req, "blogId", "blog-1")
	w := httptest.NewRecorder()

	h.DeleteBlog(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var result messageEnvelope
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Message == "" {
		t.Error("message should not be empty")
	}
}

// 存在しない場合と著者不一致の場合はどちらも404になる。
func TestBlogHandler_DeleteBlog_NotOwner_ReturnsNotFound(t *testing.T) {
	svc := &mockBlogService{
		deleteFn: func(ctx context.Context, userID, blogID string) error {
			return model.NewBlogNotFoundError(blogID)
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/blogs/blog-1", nil)
	req = withUser(req, "other-user")
	req = withChiURLParam(req, "blogId", "blog-1")
	w := httptest.NewRecorder()

	h.DeleteBlog(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- GET /api/blogs/{blogId} ---

func TestBlogHandler_GetBlog_AnonymousViewer(t *testing.T) {
	svc := &mockBlogService{
		getForReaderFn: func(ctx context.Context, blogID string, viewer *model.User) (*model.BlogWithAuthor, error) {
			if viewer != nil {
				t.Errorf("viewer = %+v, want nil for anonymous request", viewer)
			}
			return &model.BlogWithAuthor{
				Blog:   *testBlog(blogID, "author-1"),
				Author: model.User{ID: "author-1", Email: "a@example.com", Name: "Alice"},
			}, nil
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/blogs/blog-1", nil)
	req = withChiURLParam(req, "blogId", "blog-1")
	w := httptest.NewRecorder()

	h.GetBlog(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result blogWithAuthorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Blog.Author.ID != "author-1" {
		t.Errorf("blog.author.id = %q, want author-1", result.Blog.Author.ID)
	}
	if result.Blog.Views != 3 {
		t.Errorf("blog.views = %d, want 3", result.Blog.Views)
	}
}

func TestBlogHandler_GetBlog_PassesAuthenticatedViewer(t *testing.T) {
	svc := &mockBlogService{
		getForReaderFn: func(ctx context.Context, blogID string, viewer *model.User) (*model.BlogWithAuthor, error) {
			if viewer == nil || viewer.ID != "user-123" {
				t.Errorf("viewer = %+v, want user-123", viewer)
			}
			return &model.BlogWithAuthor{
				Blog:   *testBlog(blogID, "user-123"),
				Author: model.User{ID: "user-123"},
			}, nil
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/blogs/blog-1", nil)
	req = withUser(req, "user-123")
	req = withChiURLParam(req, "blogId", "blog-1")
	w := httptest.NewRecorder()

	h.GetBlog(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestBlogHandler_GetBlog_NotFound(t *testing.T) {
	svc := &mockBlogService{
		getForReaderFn: func(ctx context.Context, blogID string, viewer *model.User) (*model.BlogWithAuthor, error) {
			return nil, model.NewBlogNotFoundError(blogID)
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/blogs/missing", nil)
	req = withChiURLParam(req, "blogId", "missing")
	w := httptest.NewRecorder()

	h.GetBlog(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	body := decodeErrorResponse(t, w)
	if body.Code != model.ErrCodeBlogNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeBlogNotFound)
	}
}

// --- GET /api/blogs ---

func TestBlogHandler_ListBlogs_PassesQueryParams(t *testing.T) {
	svc := &mockBlogService{
		listPublishedFn: func(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error) {
			if limit != 5 || offset != 10 {
				t.Errorf("limit = %d, offset = %d, want 5, 10", limit, offset)
			}
			return []*model.BlogWithAuthor{}, nil
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/blogs?limit=5&offset=10", nil)
	w := httptest.NewRecorder()

	h.ListBlogs(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// 欠落・不正なクエリパラメータは0としてサービス層に渡す（クランプはサービス層の責務）。
func TestBlogHandler_ListBlogs_InvalidQueryParamsDefaultToZero(t *testing.T) {
	svc := &mockBlogService{
		listPublishedFn: func(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error) {
			if limit != 0 || offset != 0 {
				t.Errorf("limit = %d, offset = %d, want 0, 0", limit, offset)
			}
			return nil, nil
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/blogs?limit=abc", nil)
	w := httptest.NewRecorder()

	h.ListBlogs(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// サービスがnilを返しても空配列としてシリアライズされる。
func TestBlogHandler_ListBlogs_EmptyResultIsArray(t *testing.T) {
	h := NewBlogHandler(&mockBlogService{})

	req := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
	w := httptest.NewRecorder()

	h.ListBlogs(w, req)

	var result map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(result["blogs"]) != "[]" {
		t.Errorf("blogs = %s, want []", result["blogs"])
	}
}

// --- GET /api/user/{userId}/blogs ---

func TestBlogHandler_ListUserBlogs_Success(t *testing.T) {
	svc := &mockBlogService{
		listByAuthorFn: func(ctx context.Context, requesterID, authorID string) ([]*model.Blog, error) {
			if requesterID != "user-123" || authorID != "user-123" {
				t.Errorf("requesterID = %q, authorID = %q", requesterID, authorID)
			}
			draft := testBlog("blog-2", authorID)
			draft.IsPublished = false
			return []*model.Blog{draft}, nil
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user/user-123/blogs", nil)
	req = withUser(req, "user-123")
	req = withChiURLParam(req, "userId", "user-123")
	w := httptest.NewRecorder()

	h.ListUserBlogs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result map[string][]blogResponse
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result["blogs"]) != 1 {
		t.Fatalf("len(blogs) = %d, want 1", len(result["blogs"]))
	}
	if result["blogs"][0].IsPublished {
		t.Error("draft should be included in the author's own listing")
	}
}

func TestBlogHandler_ListUserBlogs_OtherUser_ReturnsForbidden(t *testing.T) {
	svc := &mockBlogService{
		listByAuthorFn: func(ctx context.Context, requesterID, authorID string) ([]*model.Blog, error) {
			return nil, model.NewAccessDeniedError()
		},
	}
	h := NewBlogHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user/someone-else/blogs", nil)
	req = withUser(req, "user-123")
	req = withChiURLParam(req, "userId", "someone-else")
	w := httptest.NewRecorder()

	h.ListUserBlogs(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

// nilスライスのフィールドは空配列としてシリアライズされる。
func TestToBlogResponse_NilSlicesBecomeEmptyArrays(t *testing.T) {
	b := testBlog("blog-1", "user-123")
	b.Tags = nil
	b.MediaURLs = nil

	resp := toBlogResponse(b)

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if string(decoded["tags"]) != "[]" {
		t.Errorf("tags = %s, want []", decoded["tags"])
	}
	if string(decoded["mediaUrls"]) != "[]" {
		t.Errorf("mediaUrls = %s, want []", decoded["mediaUrls"])
	}
}
