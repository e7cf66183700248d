package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Syuney-mls/life-log/internal/middleware"
	"github.com/Syuney-mls/life-log/internal/model"
	"github.com/Syuney-mls/life-log/internal/report"
	"github.com/Syuney-mls/life-log/internal/workspace"
)

// EntryHandler は記録の入力・履歴に関するHTTPハンドラー。
type EntryHandler struct {
	workspaces WorkspaceProvider
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(workspaces WorkspaceProvider) *EntryHandler {
	return &EntryHandler{workspaces: workspaces}
}

type categoryResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

type entryResponse struct {
	ID            string     `json:"id"`
	Category      string     `json:"category"`
	CategoryLabel string     `json:"category_label"`
	Memo          string     `json:"memo"`
	Timestamp     *time.Time `json:"timestamp"`
}

type entriesResponse struct {
	Count   int             `json:"count"`
	Entries []entryResponse `json:"entries"`
}

type draftResponse struct {
	Category    string     `json:"category"`
	Memo        string     `json:"memo"`
	Tab         string     `json:"tab"`
	LastSavedAt *time.Time `json:"last_saved_at"`
}

type reportResponse struct {
	Status     string `json:"status"`
	Text       string `json:"text"`
	Generation uint64 `json:"generation"`
}

type stateResponse struct {
	UserID       string          `json:"user_id"`
	Version      uint64          `json:"version"`
	Count        int             `json:"count"`
	Entries      []entryResponse `json:"entries"`
	Draft        draftResponse   `json:"draft"`
	SavedVisible bool            `json:"saved_visible"`
	Report       reportResponse  `json:"report"`
}

// updateStateRequest は入力状態の部分更新リクエスト。
// 指定されたフィールドだけを反映する。
type updateStateRequest struct {
	Category *string `json:"category"`
	Memo     *string `json:"memo"`
	Tab      *string `json:"tab"`
}

// saveEntryRequest は保存リクエスト。
// 省略時は入力中のカテゴリとメモをそのまま保存する。
type saveEntryRequest struct {
	Category *string `json:"category"`
	Memo     *string `json:"memo"`
}

// ListCategories はカテゴリ一覧を表示順で返す。
// GET /api/categories
func (h *EntryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	infos := model.Categories()
	resp := make([]categoryResponse, len(infos))
	for i, c := range infos {
		resp[i] = categoryResponse{ID: string(c.ID), Label: c.Label, Icon: c.Icon}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetState はワークスペースの現在の状態を返す。
// GET /api/state
func (h *EntryHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(ws.State()))
}

// UpdateState はカテゴリ選択・メモ編集・タブ切り替えを反映する。
// PATCH /api/state
// 検証はすべてのフィールドについて先に行い、不正な値があれば何も変更しない。
func (h *EntryHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	var req updateStateRequest
	if err := decodeBody(r, &req, false); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if req.Category != nil && !model.Category(*req.Category).Valid() {
		middleware.WriteError(w, model.NewInvalidCategoryError(*req.Category))
		return
	}
	if req.Tab != nil && !model.Tab(*req.Tab).Valid() {
		middleware.WriteError(w, model.NewInvalidTabError(*req.Tab))
		return
	}

	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}

	if req.Category != nil {
		if err := ws.SelectCategory(model.Category(*req.Category)); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	if req.Memo != nil {
		ws.SetMemo(*req.Memo)
	}
	if req.Tab != nil {
		if err := ws.SetTab(model.Tab(*req.Tab)); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toStateResponse(ws.State()))
}

// ListEntries は記録の履歴を新しい順に返す。
// GET /api/entries
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}
	st := ws.State()
	writeJSON(w, http.StatusOK, entriesResponse{
		Count:   len(st.Records),
		Entries: toEntryResponses(st.Records),
	})
}

// SaveEntry は入力中の記録を保存する。
// POST /api/entries
// 成功時は201とメモをクリアした状態を返す。失敗時はメモを保持したままエラーを返す。
func (h *EntryHandler) SaveEntry(w http.ResponseWriter, r *http.Request) {
	var req saveEntryRequest
	if err := decodeBody(r, &req, true); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if req.Category != nil && !model.Category(*req.Category).Valid() {
		middleware.WriteError(w, model.NewInvalidCategoryError(*req.Category))
		return
	}

	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}

	if req.Category != nil {
		if err := ws.SelectCategory(model.Category(*req.Category)); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	if req.Memo != nil {
		ws.SetMemo(*req.Memo)
	}

	if err := ws.Save(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStateResponse(ws.State()))
}

// DeleteEntry は記録を削除する。確認はクライアント側で行う。
// DELETE /api/entries/{id}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")
	if entryID == "" {
		middleware.WriteError(w, model.NewInvalidRequestError("記録IDが指定されていません"))
		return
	}

	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}

	if err := ws.Delete(r.Context(), entryID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bindWorkspace はリクエストユーザーのワークスペースを取得する。
// 失敗時はレスポンスを書き込み、falseを返す。
func bindWorkspace(workspaces WorkspaceProvider, w http.ResponseWriter, r *http.Request) (WorkspaceSession, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}

	ws, err := workspaces.Bind(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return ws, true
}

// decodeBody はJSONボディを読み込む。allowEmptyなら空ボディを許容する。
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return model.NewInvalidRequestError("JSONの形式が正しくありません")
	}
	return nil
}

func toEntryResponses(records model.RecordSet) []entryResponse {
	out := make([]entryResponse, len(records))
	for i, e := range records {
		out[i] = entryResponse{
			ID:            e.ID,
			Category:      string(e.Category),
			CategoryLabel: e.Category.Label(),
			Memo:          e.Memo,
			Timestamp:     e.Timestamp,
		}
	}
	return out
}

func toReportResponse(rs workspace.ReportState) reportResponse {
	text := rs.Text
	if rs.Status == model.ReportGenerating {
		text = report.GeneratingMessage
	}
	return reportResponse{
		Status:     string(rs.Status),
		Text:       text,
		Generation: rs.Generation,
	}
}

func toStateResponse(st workspace.State) stateResponse {
	return stateResponse{
		UserID:  st.UserID,
		Version: st.Version,
		Count:   len(st.Records),
		Entries: toEntryResponses(st.Records),
		Draft: draftResponse{
			Category:    string(st.Draft.Category),
			Memo:        st.Draft.Memo,
			Tab:         string(st.Draft.Tab),
			LastSavedAt: st.Draft.LastSavedAt,
		},
		SavedVisible: st.SavedVisible,
		Report:       toReportResponse(st.Report),
	}
}
