package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Syuney-mls/life-log/internal/metrics"
	"github.com/Syuney-mls/life-log/internal/model"
)

// Options はManagerの設定。
type Options struct {
	// Location は日報エクスポートの時刻表示に使う。
	Location *time.Location
	// ReportTimeout は1回の日報生成の上限時間。0で無制限。
	ReportTimeout time.Duration
}

// Manager はユーザーIDごとのWorkspaceを管理する。
// 同一ユーザーの複数リクエストは同じWorkspaceを共有する。
type Manager struct {
	ctx      context.Context
	store    Store
	reporter Reporter
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
	binding    map[string]chan struct{}
}

// NewManager はManagerを生成する。ctxが終了すると全ワークスペースの購読も終了する。
func NewManager(ctx context.Context, store Store, reporter Reporter, m metrics.MetricsCollector, logger *slog.Logger, opts Options) *Manager {
	if m == nil {
		m = metrics.Nop{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Manager{
		ctx:        ctx,
		store:      store,
		reporter:   reporter,
		metrics:    m,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
		binding:    make(map[string]chan struct{}),
	}
}

// Bind はuserIDのWorkspaceを返す。なければ記録の購読を開始して作成する。
// 同じユーザーの同時呼び出しでは購読は1本だけ作られる。
func (m *Manager) Bind(ctx context.Context, userID string) (*Workspace, error) {
	for {
		m.mu.Lock()
		if w, ok := m.workspaces[userID]; ok {
			m.mu.Unlock()
			return w, nil
		}
		wait, inProgress := m.binding[userID]
		if !inProgress {
			wait = make(chan struct{})
			m.binding[userID] = wait
			m.mu.Unlock()
			break
		}
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w := m.newWorkspace(userID)
	err := w.start(m.ctx)

	m.mu.Lock()
	if err == nil {
		m.workspaces[userID] = w
	}
	close(m.binding[userID])
	delete(m.binding, userID)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to bind workspace",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	m.logger.Debug("workspace bound", slog.String("user_id", userID))
	return w, nil
}

func (m *Manager) newWorkspace(userID string) *Workspace {
	return &Workspace{
		userID:        userID,
		store:         m.store,
		reporter:      m.reporter,
		metrics:       m.metrics,
		logger:        m.logger,
		loc:           m.opts.Location,
		reportTimeout: m.opts.ReportTimeout,
		now:           m.now,
		done:          make(chan struct{}),
		changed:       make(chan struct{}),
		draft: Draft{
			Category: model.DefaultCategory,
			Tab:      model.TabInput,
		},
		report:     ReportState{Status: model.ReportIdle},
		lastAccess: m.now(),
	}
}

// Get はバインド済みのWorkspaceを返す。
func (m *Manager) Get(userID string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[userID]
	return w, ok
}

// Release はuserIDのWorkspaceの購読を止めて破棄する。
// サインアウトなど識別子が変わるときに呼ぶ。
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	w, ok := m.workspaces[userID]
	delete(m.workspaces, userID)
	m.mu.Unlock()

	if ok {
		w.stop()
		m.logger.Debug("workspace released", slog.String("user_id", userID))
	}
}

// ReleaseIdle はストリーム接続がなくmaxIdle以上操作されていないWorkspaceを破棄し、件数を返す。
func (m *Manager) ReleaseIdle(maxIdle time.Duration) int {
	now := m.now()

	m.mu.Lock()
	var idle []string
	for id, w := range m.workspaces {
		if d, ok := w.idleSince(now); ok && d >= maxIdle {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		m.Release(id)
	}
	return len(idle)
}

// RunEviction はctxが終了するまでintervalごとにReleaseIdleを実行する。
func (m *Manager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.ReleaseIdle(maxIdle); n > 0 {
				m.logger.Info("idle workspaces released", slog.Int("count", n))
			}
		}
	}
}

// Close は全Workspaceを破棄する。
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Release(id)
	}
}

// Len はバインド中のWorkspace数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}
