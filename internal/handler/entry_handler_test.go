package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Syuney-mls/life-log/internal/middleware"
	"github.com/Syuney-mls/life-log/internal/model"
)

// authedRequest はユーザーIDをコンテキストに注入したリクエストを生成する。
func authedRequest(method, target, body, userID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var st stateResponse
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	return st
}

func TestEntryHandler_ListCategories_ReturnsFixedOrder(t *testing.T) {
	h := NewEntryHandler(newMockProvider())

	w := httptest.NewRecorder()
	h.ListCategories(w, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	var got []categoryResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	wantIDs := []string{"work", "study", "break", "meal", "exercise", "sleep", "other"}
	if len(got) != len(wantIDs) {
		t.Fatalf("len = %d, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("categories[%d] = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[0].Label != "仕事" {
		t.Errorf("label = %q, want 仕事", got[0].Label)
	}
}

func TestEntryHandler_GetState_InitialDefaults(t *testing.T) {
	h := NewEntryHandler(newMockProvider())

	w := httptest.NewRecorder()
	h.GetState(w, authedRequest(http.MethodGet, "/api/state", "", "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	st := decodeState(t, w)
	if st.UserID != "user-1" {
		t.Errorf("user_id = %q", st.UserID)
	}
	if st.Draft.Category != "work" || st.Draft.Tab != "input" || st.Draft.Memo != "" {
		t.Errorf("draft = %+v", st.Draft)
	}
	if st.Report.Status != "idle" {
		t.Errorf("report status = %q, want idle", st.Report.Status)
	}
	if st.Count != 0 || len(st.Entries) != 0 {
		t.Errorf("entries = %d, want 0", st.Count)
	}
}

func TestEntryHandler_GetState_NoUser_Returns401(t *testing.T) {
	h := NewEntryHandler(newMockProvider())

	w := httptest.NewRecorder()
	h.GetState(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestEntryHandler_GetState_BindFailure_Returns500(t *testing.T) {
	provider := newMockProvider()
	provider.bindErr = errors.New("listen failed")
	h := NewEntryHandler(provider)

	w := httptest.NewRecorder()
	h.GetState(w, authedRequest(http.MethodGet, "/api/state", "", "user-1"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestEntryHandler_UpdateState_AppliesFields(t *testing.T) {
	provider := newMockProvider()
	h := NewEntryHandler(provider)

	w := httptest.NewRecorder()
	h.UpdateState(w, authedRequest(http.MethodPatch, "/api/state",
		`{"category":"study","memo":"Go の勉強","tab":"history"}`, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	st := decodeState(t, w)
	if st.Draft.Category != "study" || st.Draft.Memo != "Go の勉強" || st.Draft.Tab != "history" {
		t.Errorf("draft = %+v", st.Draft)
	}
}

func TestEntryHandler_UpdateState_PartialUpdate_KeepsOtherFields(t *testing.T) {
	provider := newMockProvider()
	ws := provider.workspaceFor("user-1")
	ws.SetMemo("書きかけ")
	h := NewEntryHandler(provider)

	w := httptest.NewRecorder()
	h.UpdateState(w, authedRequest(http.MethodPatch, "/api/state", `{"category":"meal"}`, "user-1"))

	st := decodeState(t, w)
	if st.Draft.Category != "meal" {
		t.Errorf("category = %q, want meal", st.Draft.Category)
	}
	if st.Draft.Memo != "書きかけ" {
		t.Errorf("memo = %q, want 書きかけ", st.Draft.Memo)
	}
}

func TestEntryHandler_UpdateState_Validation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "未知のカテゴリ", body: `{"category":"nap","memo":"x"}`, wantCode: model.ErrCodeInvalidCategory},
		{name: "未知のタブ", body: `{"tab":"settings"}`, wantCode: model.ErrCodeInvalidTab},
		{name: "不正なJSON", body: `{"category":`, wantCode: model.ErrCodeInvalidRequest},
		{name: "未知のフィールド", body: `{"colour":"red"}`, wantCode: model.ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newMockProvider()
			h := NewEntryHandler(provider)

			w := httptest.NewRecorder()
			h.UpdateState(w, authedRequest(http.MethodPatch, "/api/state", tt.body, "user-1"))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			// 不正なリクエストでは何も変更しない
			if st := provider.workspaceFor("user-1").State(); st.Draft.Memo != "" || st.Draft.Category != model.DefaultCategory {
				t.Errorf("draft changed: %+v", st.Draft)
			}
		})
	}
}

func TestEntryHandler_ListEntries_ReturnsCountAndOrder(t *testing.T) {
	provider := newMockProvider()
	t1 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	provider.workspaceFor("user-1").replaceRecords(model.RecordSet{
		{ID: "b", Category: model.CategoryMeal, Memo: "昼食", Timestamp: &t2},
		{ID: "a", Category: model.CategoryWork, Memo: "朝会", Timestamp: &t1},
	})
	h := NewEntryHandler(provider)

	w := httptest.NewRecorder()
	h.ListEntries(w, authedRequest(http.MethodGet, "/api/entries", "", "user-1"))

	var body entriesResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
	if body.Entries[0].ID != "b" || body.Entries[1].ID != "a" {
		t.Errorf("order = %s,%s; want b,a", body.Entries[0].ID, body.Entries[1].ID)
	}
	if body.Entries[0].CategoryLabel != "食事" {
		t.Errorf("category_label = %q, want 食事", body.Entries[0].CategoryLabel)
	}
}

func TestEntryHandler_ListEntries_PendingTimestampIsNull(t *testing.T) {
	provider := newMockProvider()
	provider.workspaceFor("user-1").replaceRecords(model.RecordSet{{ID: "p", Category: model.CategoryWork}})
	h := NewEntryHandler(provider)

	w := httptest.NewRecorder()
	h.ListEntries(w, authedRequest(http.MethodGet, "/api/entries", "", "user-1"))

	if !strings.Contains(w.Body.String(), `"timestamp":null`) {
		t.Errorf("pending timestamp should be null: %s", w.Body.String())
	}
}

func TestEntryHandler_SaveEntry_UsesDraft(t *testing.T) {
	provider := newMockProvider()
	ws := provider.workspaceFor("user-1")
	ws.SelectCategory(model.CategoryExercise)
	ws.SetMemo("ランニング 5km")
	h := NewEntryHandler(provider)

	w := httptest.NewRecorder()
	h.SaveEntry(w, authedRequest(http.MethodPost, "/api/entries", "", "user-1"))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	st := decodeState(t, w)
	if st.Draft.Memo != "" {
		t.Errorf("memo should be cleared, got %q", st.Draft.Memo)
	}
	if !st.SavedVisible || st.Draft.LastSavedAt == nil {
		t.Error("save notice should be visible")
	}
	if st.Count != 1 || st.Entries[0].Category != "exercise" || st.Entries[0].Memo != "ランニング 5km" {
		t.Errorf("entries = %+v", st.Entries)
	}
}

func TestEntryHandler_SaveEntry_BodyOverridesDraft(t *testing.T) {
	provider := newMockProvider()
	h := NewEntryHandler(provider)

	w := httptest.NewRecorder()
	h.SaveEntry(w, authedRequest(http.MethodPost, "/api/entries", `{"category":"sleep","memo":"昼寝"}`, "user-1"))

	st := decodeState(t, w)
	if st.Entries[0].Category != "sleep" || st.Entries[0].Memo != "昼寝" {
		t.Errorf("entry = %+v", st.Entries[0])
	}
}

func TestEntryHandler_SaveEntry_EmptyMemoAllowed(t *testing.T) {
	h := NewEntryHandler(newMockProvider())

	w := httptest.NewRecorder()
	h.SaveEntry(w, authedRequest(http.MethodPost, "/api/entries", `{"category":"break"}`, "user-1"))

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

func TestEntryHandler_SaveEntry_WriteFailure_KeepsMemo(t *testing.T) {
	provider := newMockProvider()
	ws := provider.workspaceFor("user-1")
	ws.SetMemo("消えてはいけないメモ")
	ws.saveErr = model.NewWriteFailedError()
	h := NewEntryHandler(provider)

	w := httptest.NewRecorder()
	h.SaveEntry(w, authedRequest(http.MethodPost, "/api/entries", "", "user-1"))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeWriteFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeWriteFailed)
	}
	if st := ws.State(); st.Draft.Memo != "消えてはいけないメモ" {
		t.Errorf("memo = %q, should be preserved", st.Draft.Memo)
	}
}

func TestEntryHandler_SaveEntry_InvalidCategory_Returns400(t *testing.T) {
	h := NewEntryHandler(newMockProvider())

	w := httptest.NewRecorder()
	h.SaveEntry(w, authedRequest(http.MethodPost, "/api/entries", `{"category":"gaming"}`, "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEntryHandler_DeleteEntry(t *testing.T) {
	tests := []struct {
		name       string
		deleteErr  error
		wantStatus int
	}{
		{name: "成功", wantStatus: http.StatusNoContent},
		{name: "存在しない", deleteErr: model.NewEntryNotFoundError("x"), wantStatus: http.StatusNotFound},
		{name: "書き込み失敗", deleteErr: model.NewWriteFailedError(), wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newMockProvider()
			ws := provider.workspaceFor("user-1")
			ws.deleteFn = func(entryID string) error { return tt.deleteErr }
			h := NewEntryHandler(provider)

			req := withURLParam(authedRequest(http.MethodDelete, "/api/entries/e1", "", "user-1"), "id", "e1")
			w := httptest.NewRecorder()
			h.DeleteEntry(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.deleteErr == nil && (len(ws.deleted) != 1 || ws.deleted[0] != "e1") {
				t.Errorf("deleted = %v, want [e1]", ws.deleted)
			}
		})
	}
}
