package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/quill/internal/model"
	"github.com/hitoshi/quill/internal/user"
)

// mockRegisterService はRegisterServiceInterfaceのモック実装。
type mockRegisterService struct {
	registerFn func(ctx context.Context, input *user.RegisterInput) (*model.User, error)
}

func (m *mockRegisterService) Register(ctx context.Context, input *user.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, input)
	}
	return nil, nil
}

// レガシーヘッダー認証が無効な場合、登録エンドポイントは410を返す。
func TestAuthHandler_Register_Disabled_ReturnsGone(t *testing.T) {
	svc := &mockRegisterService{
		registerFn: func(ctx context.Context, input *user.RegisterInput) (*model.User, error) {
			t.Error("register service should not be called when the endpoint is disabled")
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, false)

	body := `{"email": "alice@example.com", "name": "Alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", w.Code)
	}
	resp := decodeErrorResponse(t, w)
	if resp.Code != model.ErrCodeRegistrationGone {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeRegistrationGone)
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := &mockRegisterService{
		registerFn: func(ctx context.Context, input *user.RegisterInput) (*model.User, error) {
			if input.Email != "alice@example.com" || input.Name != "Alice" {
				t.Errorf("input = %+v", input)
			}
			return &model.User{ID: "user-1", Email: input.Email, Name: input.Name}, nil
		},
	}
	h := NewAuthHandler(svc, true)

	body := `{"email": "alice@example.com", "name": "Alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var result userEnvelope
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.User.ID != "user-1" {
		t.Errorf("user.id = %q, want user-1", result.User.ID)
	}
}

func TestAuthHandler_Register_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewAuthHandler(&mockRegisterService{}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("{broken"))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthHandler_Register_ValidationError(t *testing.T) {
	svc := &mockRegisterService{
		registerFn: func(ctx context.Context, input *user.RegisterInput) (*model.User, error) {
			return nil, model.NewValidationError([]model.FieldViolation{
				{Field: "email", Message: "メールアドレスは必須です"},
			})
		},
	}
	h := NewAuthHandler(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"name": "Alice"}`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeErrorResponse(t, w)
	if len(resp.Errors) != 1 || resp.Errors[0].Field != "email" {
		t.Errorf("errors = %+v, want email violation", resp.Errors)
	}
}
