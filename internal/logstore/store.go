// Package logstore はユーザーごとの活動記録の購読・作成・削除を提供する。
package logstore

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Syuney-mls/life-log/internal/metrics"
	"github.com/Syuney-mls/life-log/internal/model"
	"github.com/Syuney-mls/life-log/internal/repository"
)

// Store は記録ストアのアダプター。
type Store struct {
	repo    repository.LogEntryRepository
	hub     *Hub
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore はStoreを生成する。
func NewStore(repo repository.LogEntryRepository, hub *Hub, m metrics.MetricsCollector, logger *slog.Logger) *Store {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Store{
		repo:    repo,
		hub:     hub,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Subscribe はユーザーの記録全件のスナップショットを流すチャネルを返す。
//
// 最初のスナップショットは即座に送られ、以降はそのユーザーの記録が追加・削除される
// たびに全件を取り直して送る。各スナップショットはタイムスタンプ降順。
// 受信側が追いつかない場合、未受信のスナップショットは最新のもので置き換えられる。
// ctxが終了するとチャネルは閉じられる。再開はできず、新たにSubscribeする。
//
// 変更通知の登録は最初のスナップショットを読む前に行う。読み取り中の変更は
// 次のスナップショットに反映される。
func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan model.RecordSet, error) {
	sub := s.hub.register(userID)

	initial, err := s.snapshot(ctx, userID)
	if err != nil {
		s.hub.unregister(sub)
		return nil, err
	}

	s.metrics.SubscriptionOpened()

	out := make(chan model.RecordSet, 1)
	out <- initial

	go func() {
		defer close(out)
		defer s.metrics.SubscriptionClosed()
		defer s.hub.unregister(sub)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.signal:
				records, err := s.snapshot(ctx, userID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Warn("failed to refresh snapshot",
						slog.String("user_id", userID),
						slog.String("error", err.Error()),
					)
					continue
				}
				replaceLatest(out, records)
			}
		}
	}()

	return out, nil
}

// replaceLatest はoutに未受信の値があれば捨ててからrecordsを入れる。
// outへの送信者は1つだけであること。
func replaceLatest(out chan model.RecordSet, records model.RecordSet) {
	select {
	case out <- records:
	default:
		select {
		case <-out:
		default:
		}
		out <- records
	}
}

func (s *Store) snapshot(ctx context.Context, userID string) (model.RecordSet, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(records, s.now())
	return records, nil
}

// Create は記録を1件追加する。タイムスタンプはストア側で付与される。
// 失敗時はWRITE_FAILEDのAPIErrorを返す。
// 購読者への反映はlog_entriesのトリガーが送る変更通知だけで行う。
func (s *Store) Create(ctx context.Context, userID string, category model.Category, memo string) error {
	if !category.Valid() {
		return model.NewInvalidCategoryError(string(category))
	}

	entry := &model.LogEntry{
		ID:       uuid.New().String(),
		UserID:   userID,
		Category: category,
		Memo:     memo,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.metrics.RecordWriteFailure("create")
		s.logger.Error("failed to create log entry",
			slog.String("user_id", userID),
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
		return model.NewWriteFailedError()
	}

	s.metrics.RecordEntryCreated(string(category))
	return nil
}

// Remove はユーザーの記録を1件削除する。
// 存在しない記録とUUIDとして解釈できないIDはENTRY_NOT_FOUNDを返す。
// それ以外の失敗はWRITE_FAILEDを返す。
func (s *Store) Remove(ctx context.Context, userID, entryID string) error {
	if _, err := uuid.Parse(entryID); err != nil {
		return model.NewEntryNotFoundError(entryID)
	}

	if err := s.repo.Delete(ctx, userID, entryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewEntryNotFoundError(entryID)
		}
		s.metrics.RecordWriteFailure("delete")
		s.logger.Error("failed to delete log entry",
			slog.String("user_id", userID),
			slog.String("entry_id", entryID),
			slog.String("error", err.Error()),
		)
		return model.NewWriteFailedError()
	}

	s.metrics.RecordEntryDeleted()
	return nil
}

// SortNewestFirst は記録をタイムスタンプ降順に並べ替える。
// 未確定のタイムスタンプはnowとして扱う。同時刻の記録は元の順序を保つ。
func SortNewestFirst(records model.RecordSet, now time.Time) {
	slices.SortStableFunc(records, func(a, b model.LogEntry) int {
		return b.EffectiveTime(now).Compare(a.EffectiveTime(now))
	})
}
