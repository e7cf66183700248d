package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Syuney-mls/life-log/internal/middleware"
	"github.com/Syuney-mls/life-log/internal/model"
	"github.com/Syuney-mls/life-log/internal/workspace"
)

// readEvent はSSEストリームから次のstateイベントを読み、デコードする。
// コメント行は読み飛ばす。
func readEvent(t *testing.T, r *bufio.Reader) stateResponse {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			var st stateResponse
			if err := json.Unmarshal([]byte(data), &st); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			return st
		}
	}
}

func TestStreamHandler_SendsInitialStateAndUpdates(t *testing.T) {
	provider := newMockProvider()
	ws := provider.workspaceFor("user-1")
	h := NewStreamHandler(provider, time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, r.WithContext(middleware.ContextWithUserID(r.Context(), "user-1")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	r := bufio.NewReader(resp.Body)
	first := readEvent(t, r)
	if first.Count != 0 {
		t.Errorf("initial count = %d, want 0", first.Count)
	}

	// 記録スナップショットの置き換えがイベントとして届く
	now := time.Now()
	ws.replaceRecords(model.RecordSet{{ID: "e1", Category: model.CategoryWork, Memo: "設計", Timestamp: &now}})

	second := readEvent(t, r)
	if second.Count != 1 || second.Entries[0].ID != "e1" {
		t.Errorf("second event = %+v", second)
	}
	if second.Version <= first.Version {
		t.Errorf("version should increase: %d -> %d", first.Version, second.Version)
	}

	ws.mu.Lock()
	attached := ws.attached
	ws.mu.Unlock()
	if attached != 1 {
		t.Errorf("attached = %d, want 1", attached)
	}
}

func TestStreamHandler_DetachesOnDisconnect(t *testing.T) {
	provider := newMockProvider()
	ws := provider.workspaceFor("user-1")
	h := NewStreamHandler(provider, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(
		middleware.ContextWithUserID(ctx, "user-1"))
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Stream(w, req)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after client disconnect")
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.attached != 1 || ws.detached != 1 {
		t.Errorf("attached=%d detached=%d, want 1/1", ws.attached, ws.detached)
	}
}

func TestStreamHandler_ClosesWhenWorkspaceReleased(t *testing.T) {
	provider := newMockProvider()
	provider.workspaceFor("user-1")
	h := NewStreamHandler(provider, time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, r.WithContext(middleware.ContextWithUserID(r.Context(), "user-1")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	readEvent(t, r)

	// 退会やサインアウトでワークスペースが破棄される
	provider.Release("user-1")

	ended := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(r)
		ended <- err
	}()
	select {
	case err := <-ended:
		if err != nil {
			t.Errorf("stream ended with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ワークスペース破棄後もストリームが閉じられません")
	}
}

func TestStreamHandler_ManagerRelease_EndsStream(t *testing.T) {
	store := &releaseTestStore{}
	var buf bytes.Buffer
	manager := workspace.NewManager(context.Background(), store, nil, nil,
		slog.New(slog.NewJSONHandler(&buf, nil)), workspace.Options{Location: time.UTC})
	defer manager.Close()
	adapter := NewManagerAdapter(manager)
	h := NewStreamHandler(adapter, time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, r.WithContext(middleware.ContextWithUserID(r.Context(), "u1")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	readEvent(t, r)

	adapter.Release("u1")

	ended := make(chan struct{})
	go func() {
		_, _ = io.ReadAll(r)
		close(ended)
	}()
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("Release後もストリームが開いたままです")
	}
}

// releaseTestStore は空のスナップショットを1回送り、ctx終了で購読を閉じるStore。
type releaseTestStore struct{}

func (releaseTestStore) Subscribe(ctx context.Context, _ string) (<-chan model.RecordSet, error) {
	ch := make(chan model.RecordSet, 1)
	ch <- model.RecordSet{}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (releaseTestStore) Create(context.Context, string, model.Category, string) error { return nil }
func (releaseTestStore) Remove(context.Context, string, string) error                 { return nil }

func TestStreamHandler_KeepAlive(t *testing.T) {
	provider := newMockProvider()
	provider.workspaceFor("user-1")
	h := NewStreamHandler(provider, 10*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, r.WithContext(middleware.ContextWithUserID(r.Context(), "user-1")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	readEvent(t, r)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if !strings.HasPrefix(line, ": keep-alive") {
		t.Errorf("line = %q, want keep-alive comment", line)
	}
}
