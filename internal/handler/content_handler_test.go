package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/postflow/internal/content"
	"github.com/hitoshi/postflow/internal/model"
)

func TestContentHandler_Create(t *testing.T) {
	svc := &mockContentService{
		createFn: func(ctx context.Context, userID, projectID string, in content.CreateInput) (*model.ContentItem, error) {
			if projectID != testProjectID {
				t.Errorf("projectID = %q", projectID)
			}
			if in.Kind != "post" || in.Platform != "instagram" || in.ScheduledAt != nil {
				t.Errorf("unexpected input: %+v", in)
			}
			return &model.ContentItem{ID: testContentID, ProjectID: projectID, Kind: model.ContentKindPost, Platform: in.Platform, Body: in.Body}, nil
		},
	}

	body := `{"kind":"post","platform":"instagram","body":"<p>hello</p>"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)), testUserID)
	req = withChiURLParam(req, "id", testProjectID)
	w := httptest.NewRecorder()
	NewContentHandler(svc).Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["id"] != testContentID || resp["kind"] != "post" {
		t.Errorf("unexpected response: %v", resp)
	}
	if v, ok := resp["scheduled_at"]; !ok || v != nil {
		t.Errorf("scheduled_at = %v, want explicit null", v)
	}
}

func TestContentHandler_List_QueryParameters(t *testing.T) {
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc := &mockContentService{
		listFn: func(ctx context.Context, userID, projectID, filter string, cursor time.Time, limit int) (*content.ListResult, error) {
			if filter != "unscheduled" {
				t.Errorf("filter = %q", filter)
			}
			if !cursor.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("cursor = %v", cursor)
			}
			if limit != 2 {
				t.Errorf("limit = %d", limit)
			}
			return &content.ListResult{
				Items: []*model.ContentItem{
					{ID: "c2", CreatedAt: created.Add(time.Hour)},
					{ID: "c1", CreatedAt: created},
				},
				HasMore: true,
			}, nil
		},
	}

	req := withUserID(httptest.NewRequest(http.MethodGet, "/?filter=unscheduled&cursor=2026-03-03T00:00:00Z&limit=2", nil), testUserID)
	req = withChiURLParam(req, "id", testProjectID)
	w := httptest.NewRecorder()
	NewContentHandler(svc).List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp contentListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 2 || !resp.HasMore {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.NextCursor != "2026-03-02T10:00:00Z" {
		t.Errorf("next_cursor = %q", resp.NextCursor)
	}
}

func TestContentHandler_List_BadQuery(t *testing.T) {
	for _, query := range []string{"?cursor=yesterday", "?limit=0", "?limit=abc"} {
		t.Run(query, func(t *testing.T) {
			req := withUserID(httptest.NewRequest(http.MethodGet, "/"+query, nil), testUserID)
			req = withChiURLParam(req, "id", testProjectID)
			w := httptest.NewRecorder()
			NewContentHandler(&mockContentService{}).List(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestContentHandler_List_InvalidFilter(t *testing.T) {
	svc := &mockContentService{
		listFn: func(ctx context.Context, userID, projectID, filter string, cursor time.Time, limit int) (*content.ListResult, error) {
			return nil, model.NewInvalidFilterError(filter)
		},
	}
	req := withUserID(httptest.NewRequest(http.MethodGet, "/?filter=draft", nil), testUserID)
	req = withChiURLParam(req, "id", testProjectID)
	w := httptest.NewRecorder()
	NewContentHandler(svc).List(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeInvalidFilter {
		t.Errorf("code = %q", body["code"])
	}
}

func TestContentHandler_Schedule(t *testing.T) {
	at := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)

	t.Run("成功", func(t *testing.T) {
		svc := &mockContentService{
			scheduleFn: func(ctx context.Context, userID, contentID string, got time.Time) (*model.ContentItem, error) {
				if !got.Equal(at) {
					t.Errorf("at = %v, want %v", got, at)
				}
				return &model.ContentItem{ID: contentID, ScheduledAt: &got}, nil
			},
		}
		req := withUserID(httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"scheduled_at":"2030-01-07T09:00:00Z"}`)), testUserID)
		req = withChiURLParam(req, "id", testContentID)
		w := httptest.NewRecorder()
		NewContentHandler(svc).Schedule(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("scheduled_atなし", func(t *testing.T) {
		req := withUserID(httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{}`)), testUserID)
		req = withChiURLParam(req, "id", testContentID)
		w := httptest.NewRecorder()
		NewContentHandler(&mockContentService{}).Schedule(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("過去日時", func(t *testing.T) {
		svc := &mockContentService{
			scheduleFn: func(ctx context.Context, userID, contentID string, got time.Time) (*model.ContentItem, error) {
				return nil, model.NewScheduleInPastError()
			},
		}
		req := withUserID(httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"scheduled_at":"2000-01-01T00:00:00Z"}`)), testUserID)
		req = withChiURLParam(req, "id", testContentID)
		w := httptest.NewRecorder()
		NewContentHandler(svc).Schedule(w, req)

		if body := parseAPIErrorResponse(t, w); w.Code != http.StatusBadRequest || body["code"] != model.ErrCodeScheduleInPast {
			t.Errorf("status = %d, code = %q", w.Code, body["code"])
		}
	})
}

func TestContentHandler_UnscheduleAndDelete(t *testing.T) {
	var calls []string
	svc := &mockContentService{
		unscheduleFn: func(ctx context.Context, userID, contentID string) (*model.ContentItem, error) {
			calls = append(calls, "unschedule")
			return &model.ContentItem{ID: contentID}, nil
		},
		deleteFn: func(ctx context.Context, userID, contentID string) error {
			calls = append(calls, "delete")
			return nil
		},
	}
	h := NewContentHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/", nil), testUserID), "id", testContentID)
	w := httptest.NewRecorder()
	h.Unschedule(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("unschedule status = %d", w.Code)
	}

	req = withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/", nil), testUserID), "id", testContentID)
	w = httptest.NewRecorder()
	h.Delete(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}

	if len(calls) != 2 {
		t.Errorf("calls = %v", calls)
	}
}

func TestContentHandler_Get_InvalidID(t *testing.T) {
	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodGet, "/", nil), testUserID), "id", "123")
	w := httptest.NewRecorder()
	NewContentHandler(&mockContentService{}).Get(w, req)

	if body := parseAPIErrorResponse(t, w); w.Code != http.StatusNotFound || body["code"] != model.ErrCodeContentNotFound {
		t.Errorf("status = %d, code = %q", w.Code, body["code"])
	}
}
