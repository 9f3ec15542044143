package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/postflow/internal/model"
)

func TestUserHandler_Me(t *testing.T) {
	svc := &mockUserService{
		meFn: func(ctx context.Context, userID string) (*userResponse, error) {
			return &userResponse{ID: userID, Email: "taro@example.com", Name: "Taro"}, nil
		},
	}
	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), testUserID)
	w := httptest.NewRecorder()
	NewUserHandler(svc).Me(w, req)

	var resp userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if w.Code != http.StatusOK || resp.ID != testUserID || resp.Email != "taro@example.com" {
		t.Errorf("status = %d, resp = %+v", w.Code, resp)
	}
}

func TestUserHandler_Withdraw_Success(t *testing.T) {
	var withdrawn string
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			withdrawn = userID
			return nil
		},
	}
	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), testUserID)
	w := httptest.NewRecorder()
	NewUserHandler(svc).Withdraw(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if withdrawn != testUserID {
		t.Errorf("withdrawn = %q", withdrawn)
	}
}

func TestUserHandler_Withdraw_Errors(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		err        error
		wantStatus int
	}{
		{"未認証", "", nil, http.StatusUnauthorized},
		{"ユーザーなし", testUserID, model.NewUserNotFoundError(), http.StatusNotFound},
		{"内部エラー", testUserID, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				withdrawFn: func(ctx context.Context, userID string) error { return tt.err },
			}
			req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
			if tt.userID != "" {
				req = withUserID(req, tt.userID)
			}
			w := httptest.NewRecorder()
			NewUserHandler(svc).Withdraw(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
