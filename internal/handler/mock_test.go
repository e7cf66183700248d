package handler

import (
	"context"
	"sync"
	"time"

	"github.com/Syuney-mls/life-log/internal/model"
	"github.com/Syuney-mls/life-log/internal/workspace"
)

// --- モック定義 ---

type mockAuthService struct {
	signInFn      func(ctx context.Context, sessionID string) (*model.Session, error)
	signOutFn     func(ctx context.Context, sessionID string) error
	currentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) SignInAnonymously(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, sessionID)
	}
	return nil, model.NewUnauthorizedError()
}

// mockUserService はUserServiceInterfaceのモック。
type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
	withdrawn  []string
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	m.withdrawn = append(m.withdrawn, userID)
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// mockWorkspace はWorkspaceSessionのインメモリ実装。
type mockWorkspace struct {
	mu       sync.Mutex
	state    workspace.State
	changed  chan struct{}
	done     chan struct{}
	saveErr  error
	deleteFn func(entryID string) error
	exported string
	attached int
	detached int
	deleted  []string
}

func newMockWorkspace(userID string) *mockWorkspace {
	return &mockWorkspace{
		state: workspace.State{
			UserID: userID,
			Draft: workspace.Draft{
				Category: model.DefaultCategory,
				Tab:      model.TabInput,
			},
			Report: workspace.ReportState{Status: model.ReportIdle},
		},
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (m *mockWorkspace) Done() <-chan struct{} {
	return m.done
}

func (m *mockWorkspace) bumpLocked() {
	m.state.Version++
	close(m.changed)
	m.changed = make(chan struct{})
}

// replaceRecords は購読からのスナップショット到着を模擬する。
func (m *mockWorkspace) replaceRecords(rs model.RecordSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Records = rs
	m.bumpLocked()
}

func (m *mockWorkspace) State() workspace.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	st.Records = append(model.RecordSet(nil), m.state.Records...)
	return st
}

func (m *mockWorkspace) Changes() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

func (m *mockWorkspace) SelectCategory(c model.Category) error {
	if !c.Valid() {
		return model.NewInvalidCategoryError(string(c))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Draft.Category = c
	m.bumpLocked()
	return nil
}

func (m *mockWorkspace) SetMemo(memo string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Draft.Memo = memo
	m.bumpLocked()
}

func (m *mockWorkspace) SetTab(t model.Tab) error {
	if !t.Valid() {
		return model.NewInvalidTabError(string(t))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Draft.Tab = t
	m.bumpLocked()
	return nil
}

func (m *mockWorkspace) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	now := time.Now()
	m.state.Records = append(model.RecordSet{{
		ID:        "entry-new",
		UserID:    m.state.UserID,
		Category:  m.state.Draft.Category,
		Memo:      m.state.Draft.Memo,
		Timestamp: &now,
	}}, m.state.Records...)
	m.state.Draft.Memo = ""
	m.state.Draft.LastSavedAt = &now
	m.state.SavedVisible = true
	m.bumpLocked()
	return nil
}

func (m *mockWorkspace) Delete(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteFn != nil {
		if err := m.deleteFn(entryID); err != nil {
			return err
		}
	}
	m.deleted = append(m.deleted, entryID)
	return nil
}

func (m *mockWorkspace) GenerateReport() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Report.Generation++
	m.state.Report.Status = model.ReportGenerating
	m.state.Report.Text = ""
	m.bumpLocked()
	return m.state.Report.Generation
}

func (m *mockWorkspace) DismissReport() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Report.Status = model.ReportIdle
	m.bumpLocked()
}

func (m *mockWorkspace) Export() string {
	return m.exported
}

func (m *mockWorkspace) Attach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached++
}

func (m *mockWorkspace) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detached++
}

// mockProvider はWorkspaceProviderのモック。
type mockProvider struct {
	mu         sync.Mutex
	workspaces map[string]*mockWorkspace
	bindErr    error
	released   []string
}

func newMockProvider() *mockProvider {
	return &mockProvider{workspaces: make(map[string]*mockWorkspace)}
}

func (p *mockProvider) Bind(ctx context.Context, userID string) (WorkspaceSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bindErr != nil {
		return nil, p.bindErr
	}
	ws, ok := p.workspaces[userID]
	if !ok {
		ws = newMockWorkspace(userID)
		p.workspaces[userID] = ws
	}
	return ws, nil
}

func (p *mockProvider) Release(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ws, ok := p.workspaces[userID]; ok {
		close(ws.done)
	}
	delete(p.workspaces, userID)
	p.released = append(p.released, userID)
}

// workspaceFor はテスト用にワークスペースを取得する。なければ作成する。
func (p *mockProvider) workspaceFor(userID string) *mockWorkspace {
	ws, _ := p.Bind(context.Background(), userID)
	return ws.(*mockWorkspace)
}

// mockMetrics は記録回数だけを数えるメトリクスのモック。
type mockMetrics struct {
	mu           sync.Mutex
	authFailures int
	statuses     []int
}

func (m *mockMetrics) RecordEntryCreated(string)         {}
func (m *mockMetrics) RecordEntryDeleted()               {}
func (m *mockMetrics) RecordWriteFailure(string)         {}
func (m *mockMetrics) RecordReportOutcome(string)        {}
func (m *mockMetrics) RecordReportLatency(time.Duration) {}
func (m *mockMetrics) SubscriptionOpened()               {}
func (m *mockMetrics) SubscriptionClosed()               {}

func (m *mockMetrics) RecordAuthFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFailures++
}

func (m *mockMetrics) RecordHTTPStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, code)
}

func reportReady(text string) workspace.ReportState {
	return workspace.ReportState{Status: model.ReportReady, Text: text, Generation: 1}
}
