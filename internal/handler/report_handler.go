package handler

import (
	"net/http"
)

// ReportHandler は日報の生成・表示・書き出しのHTTPハンドラー。
type ReportHandler struct {
	workspaces WorkspaceProvider
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(workspaces WorkspaceProvider) *ReportHandler {
	return &ReportHandler{workspaces: workspaces}
}

type generateReportResponse struct {
	Generation uint64 `json:"generation"`
	Status     string `json:"status"`
}

// Generate は日報生成を開始する。
// POST /api/report
// 生成は非同期に進み、結果は GET /api/report かストリームで受け取る。
// 生成中に再度呼ばれた場合は前の生成を破棄する。
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}

	gen := ws.GenerateReport()
	st := ws.State()

	writeJSON(w, http.StatusAccepted, generateReportResponse{
		Generation: gen,
		Status:     string(st.Report.Status),
	})
}

// Get は日報の状態を返す。
// GET /api/report
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(ws.State().Report))
}

// Dismiss は日報モーダルを閉じる。
// DELETE /api/report
func (h *ReportHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}
	ws.DismissReport()
	w.WriteHeader(http.StatusNoContent)
}

// Export はNotion貼り付け用のテキストを返す。
// GET /api/report/export
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ws.Export()))
}
