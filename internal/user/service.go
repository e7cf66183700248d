// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Syuney-mls/life-log/internal/model"
	"github.com/Syuney-mls/life-log/internal/repository"
)

// Repository は退会処理に必要なユーザーリポジトリの操作。
// *repository.PostgresUserRepoが満たす。
type Repository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	// DeleteWithData は記録・セッション・ユーザーを1つのトランザクションで削除する。
	DeleteWithData(ctx context.Context, id string) (int64, error)
}

// Service はユーザー管理のサービス層。
// データ消去（退会）のビジネスロジックを提供する。
type Service struct {
	users  Repository
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		logger: logger,
	}
}

// Withdraw はユーザーの全データを消去する。
// 記録・セッション・ユーザーは一括で削除され、失敗時はどれも残る。
// 記録の削除はコミット時の変更通知で購読中の画面に反映される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("退会処理を開始します", slog.String("user_id", userID))

	deleted, err := s.users.DeleteWithData(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewUserNotFoundError()
	}
	if err != nil {
		return fmt.Errorf("退会処理に失敗しました（データは削除されていません）: %w", err)
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", userID),
		slog.Int64("deleted_entries", deleted),
	)

	return nil
}

var _ Repository = (*repository.PostgresUserRepo)(nil)
