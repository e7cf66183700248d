package handler

import (
	"context"

	"github.com/Syuney-mls/life-log/internal/model"
	"github.com/Syuney-mls/life-log/internal/workspace"
)

// WorkspaceSession はハンドラーが操作する1ユーザー分のワークスペース。
// *workspace.Workspaceが満たす。
type WorkspaceSession interface {
	State() workspace.State
	Changes() <-chan struct{}
	Done() <-chan struct{}
	SelectCategory(c model.Category) error
	SetMemo(memo string)
	SetTab(t model.Tab) error
	Save(ctx context.Context) error
	Delete(ctx context.Context, entryID string) error
	GenerateReport() uint64
	DismissReport()
	Export() string
	Attach()
	Detach()
}

// WorkspaceProvider はユーザーIDからワークスペースを取得するインターフェース。
type WorkspaceProvider interface {
	Bind(ctx context.Context, userID string) (WorkspaceSession, error)
	Release(userID string)
}

// ManagerAdapter は workspace.Manager を WorkspaceProvider に適合させるアダプタ。
type ManagerAdapter struct {
	manager *workspace.Manager
}

// NewManagerAdapter はManagerAdapterを生成する。
func NewManagerAdapter(manager *workspace.Manager) *ManagerAdapter {
	return &ManagerAdapter{manager: manager}
}

// Bind はユーザーのワークスペースを返す。未作成なら購読を開始して作成する。
func (a *ManagerAdapter) Bind(ctx context.Context, userID string) (WorkspaceSession, error) {
	ws, err := a.manager.Bind(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Release はユーザーのワークスペースを破棄する。
func (a *ManagerAdapter) Release(userID string) {
	a.manager.Release(userID)
}

var _ WorkspaceSession = (*workspace.Workspace)(nil)
