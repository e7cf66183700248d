// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/Syuney-mls/life-log/internal/model"
)

// ErrNotFound は対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("not found")

// psql はPostgreSQL用のプレースホルダー($1, $2, ...)を使うクエリビルダー。
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// execer は*sql.DBと*sql.Txのどちらでも削除クエリを実行できるようにする。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UserRepository は匿名ユーザーの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。created_atはDB側で付与し、userに書き戻す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、log_entriesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// LogEntryRepository は活動記録の永続化インターフェース。
// すべての操作はユーザーIDでスコープされ、他ユーザーの記録には触れない。
type LogEntryRepository interface {
	// Create は記録を作成する。timestampはDB側で付与し、IDとともにentryに書き戻す。
	Create(ctx context.Context, entry *model.LogEntry) error

	// Delete はユーザーの記録を1件削除する。該当がなければErrNotFoundを返す。
	Delete(ctx context.Context, userID, id string) error

	// ListByUser はユーザーの全記録をtimestamp降順で返す。
	// timestamp未確定の行は先頭に並ぶ。
	ListByUser(ctx context.Context, userID string) (model.RecordSet, error)
}
