package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultKeepAliveInterval はストリームのコメント行送信間隔。
const DefaultKeepAliveInterval = 25 * time.Second

// StreamHandler はワークスペースの状態変化をServer-Sent Eventsで配信する。
type StreamHandler struct {
	workspaces WorkspaceProvider
	keepAlive  time.Duration
}

// NewStreamHandler はStreamHandlerを生成する。
func NewStreamHandler(workspaces WorkspaceProvider, keepAlive time.Duration) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAliveInterval
	}
	return &StreamHandler{workspaces: workspaces, keepAlive: keepAlive}
}

// Stream は接続直後に現在の状態を送り、以降は変化のたびに最新の状態を送る。
// GET /api/stream
// 送信が追いつかない間の変化はまとめられ、最新の状態だけが届く。
// サインアウトや退会でワークスペースが破棄されるとストリームを閉じる。
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, ok := bindWorkspace(h.workspaces, w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	// サーバーのWriteTimeoutはストリームには適用しない
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ws.Attach()
	defer ws.Detach()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		changed := ws.Changes()
		st := ws.State()

		data, err := json.Marshal(toStateResponse(st))
		if err != nil {
			slog.Error("failed to encode state", slog.String("error", err.Error()))
			return
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", st.Version, data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}

	wait:
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ws.Done():
				// 破棄されたワークスペースの状態はもう届かない。クライアントに再接続させる
				return
			case <-changed:
				break wait
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}
		}
	}
}
