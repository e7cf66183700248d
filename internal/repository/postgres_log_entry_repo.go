package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/Syuney-mls/life-log/internal/model"
)

// PostgresLogEntryRepo はPostgreSQLを使用した活動記録リポジトリ。
type PostgresLogEntryRepo struct {
	db *sql.DB
}

// NewPostgresLogEntryRepo はPostgresLogEntryRepoを生成する。
func NewPostgresLogEntryRepo(db *sql.DB) *PostgresLogEntryRepo {
	return &PostgresLogEntryRepo{db: db}
}

// Create は記録を作成する。
// timestampは指定せず、DBのデフォルト値(now())で付与する。
func (r *PostgresLogEntryRepo) Create(ctx context.Context, entry *model.LogEntry) error {
	query, args, err := psql.Insert("log_entries").
		Columns("id", "user_id", "category", "memo").
		Values(entry.ID, entry.UserID, string(entry.Category), entry.Memo).
		Suffix("RETURNING timestamp").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert log entry query: %w", err)
	}

	var ts sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&ts); err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	entry.Timestamp = nullTimePtr(ts)
	return nil
}

// Delete はユーザーの記録を1件削除する。
// 他ユーザーの記録IDを指定した場合も該当なしとして扱う。
func (r *PostgresLogEntryRepo) Delete(ctx context.Context, userID, id string) error {
	query, args, err := psql.Delete("log_entries").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete log entry query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete log entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("log entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// deleteEntriesByUser はユーザーの全記録を削除し、削除件数を返す。
func deleteEntriesByUser(ctx context.Context, ex execer, userID string) (int64, error) {
	query, args, err := psql.Delete("log_entries").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete log entries query: %w", err)
	}

	result, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete log entries: %w", err)
	}
	return result.RowsAffected()
}

// ListByUser はユーザーの全記録をtimestamp降順で返す。
func (r *PostgresLogEntryRepo) ListByUser(ctx context.Context, userID string) (model.RecordSet, error) {
	query, args, err := psql.Select("id", "user_id", "timestamp", "category", "memo").
		From("log_entries").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("timestamp DESC NULLS FIRST", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list log entries query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}
	defer rows.Close()

	records := model.RecordSet{}
	for rows.Next() {
		var (
			e        model.LogEntry
			ts       sql.NullTime
			category string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &ts, &category, &e.Memo); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.Category = model.Category(category)
		e.Timestamp = nullTimePtr(ts)
		records = append(records, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log entries: %w", err)
	}

	return records, nil
}

func nullTimePtr(ts sql.NullTime) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

// compile-time interface check
var _ LogEntryRepository = (*PostgresLogEntryRepo)(nil)
