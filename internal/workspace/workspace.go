// Package workspace はユーザーごとのアプリケーション状態を保持する。
//
// 状態は3つのスロットからなり、それぞれ書き込み元は1つに限られる。
//   - records: 記録のスナップショット。購読ゴルーチンだけが丸ごと置き換える。
//   - draft: 入力中のカテゴリ・メモ・タブ。リクエストハンドラーから更新する。
//   - report: 日報の状態。世代番号が最新の生成処理だけが結果を書き込める。
package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Syuney-mls/life-log/internal/metrics"
	"github.com/Syuney-mls/life-log/internal/model"
	"github.com/Syuney-mls/life-log/internal/report"
)

// SaveNoticeDuration は保存完了表示を出しておく時間。
const SaveNoticeDuration = 3 * time.Second

// Store は記録ストアのインターフェース。
type Store interface {
	Subscribe(ctx context.Context, userID string) (<-chan model.RecordSet, error)
	Create(ctx context.Context, userID string, category model.Category, memo string) error
	Remove(ctx context.Context, userID, entryID string) error
}

// Reporter は日報生成のインターフェース。
type Reporter interface {
	GenerateDailyReport(ctx context.Context, records model.RecordSet) (string, error)
}

// Draft は入力フォームの状態。
type Draft struct {
	Category    model.Category
	Memo        string
	Tab         model.Tab
	LastSavedAt *time.Time
}

// ReportState は日報モーダルの状態。
type ReportState struct {
	Status     model.ReportStatus
	Text       string
	Generation uint64
}

// State はワークスペースのある時点のコピー。
type State struct {
	UserID       string
	Version      uint64
	Records      model.RecordSet
	Draft        Draft
	SavedVisible bool
	Report       ReportState
}

// Workspace は1ユーザー分のアプリケーション状態。
type Workspace struct {
	userID        string
	store         Store
	reporter      Reporter
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	loc           *time.Location
	reportTimeout time.Duration
	now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	version      uint64
	changed      chan struct{}
	records      model.RecordSet
	draft        Draft
	report       ReportState
	cancelReport context.CancelFunc
	watchers     int
	lastAccess   time.Time
}

// start は購読ゴルーチンを起動する。最初のスナップショットを受け取ってから返る。
func (w *Workspace) start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	ch, err := w.store.Subscribe(w.ctx, w.userID)
	if err != nil {
		w.cancel()
		return err
	}

	select {
	case rs, ok := <-ch:
		if ok {
			w.replaceRecords(rs)
		}
	case <-w.ctx.Done():
	}

	go func() {
		defer close(w.done)
		for rs := range ch {
			w.replaceRecords(rs)
		}
	}()
	return nil
}

func (w *Workspace) replaceRecords(rs model.RecordSet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = rs
	w.bumpLocked()
}

// bumpLocked はバージョンを進め、Changesの待機者を起こす。w.muを保持して呼ぶ。
func (w *Workspace) bumpLocked() {
	w.version++
	close(w.changed)
	w.changed = make(chan struct{})
}

// stop は購読と生成中の日報を止める。
func (w *Workspace) stop() {
	w.mu.Lock()
	if w.cancelReport != nil {
		w.cancelReport()
		w.cancelReport = nil
	}
	w.mu.Unlock()

	w.cancel()
	<-w.done
}

// UserID はワークスペースの所有ユーザーIDを返す。
func (w *Workspace) UserID() string {
	return w.userID
}

// Done はワークスペースが破棄され購読が終わったときに閉じられるチャネルを返す。
// 閉じた後のワークスペースの状態はもう更新されない。
func (w *Workspace) Done() <-chan struct{} {
	return w.done
}

// Changes は次に状態が変わったときに閉じられるチャネルを返す。
func (w *Workspace) Changes() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changed
}

// State は現在の状態のコピーを返す。
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAccess = w.now()

	records := make(model.RecordSet, len(w.records))
	copy(records, w.records)

	draft := w.draft
	saved := false
	if draft.LastSavedAt != nil {
		t := *draft.LastSavedAt
		draft.LastSavedAt = &t
		saved = w.now().Sub(t) < SaveNoticeDuration
	}

	return State{
		UserID:       w.userID,
		Version:      w.version,
		Records:      records,
		Draft:        draft,
		SavedVisible: saved,
		Report:       w.report,
	}
}

// SelectCategory は入力カテゴリを変更する。
func (w *Workspace) SelectCategory(c model.Category) error {
	if !c.Valid() {
		return model.NewInvalidCategoryError(string(c))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Category = c
	w.bumpLocked()
	return nil
}

// SetMemo は入力中のメモを置き換える。
func (w *Workspace) SetMemo(memo string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Memo = memo
	w.bumpLocked()
}

// SetTab は表示タブを切り替える。
func (w *Workspace) SetTab(t model.Tab) error {
	if !t.Valid() {
		return model.NewInvalidTabError(string(t))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Tab = t
	w.bumpLocked()
	return nil
}

// Save は入力中のカテゴリとメモで記録を作成する。
// 成功するとメモを空にして保存完了表示を出す。失敗した場合メモは保持される。
// 新しい記録は購読経由で records に反映される。
func (w *Workspace) Save(ctx context.Context) error {
	w.mu.Lock()
	category, memo := w.draft.Category, w.draft.Memo
	w.lastAccess = w.now()
	w.mu.Unlock()

	if err := w.store.Create(ctx, w.userID, category, memo); err != nil {
		return err
	}

	w.mu.Lock()
	// 保存中に書き換えられたメモは消さない
	if w.draft.Memo == memo {
		w.draft.Memo = ""
	}
	savedAt := w.now()
	w.draft.LastSavedAt = &savedAt
	w.bumpLocked()
	w.mu.Unlock()

	time.AfterFunc(SaveNoticeDuration, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.draft.LastSavedAt != nil && w.draft.LastSavedAt.Equal(savedAt) {
			w.bumpLocked()
		}
	})
	return nil
}

// Delete は記録を削除する。records は購読経由で更新される。
func (w *Workspace) Delete(ctx context.Context, entryID string) error {
	w.mu.Lock()
	w.lastAccess = w.now()
	w.mu.Unlock()
	return w.store.Remove(ctx, w.userID, entryID)
}

// GenerateReport は日報生成を非同期に開始し、その世代番号を返す。
// 生成中の要求があればキャンセルし、その結果は破棄される。
func (w *Workspace) GenerateReport() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancelReport != nil {
		w.cancelReport()
	}

	w.report.Generation++
	gen := w.report.Generation
	w.report.Status = model.ReportGenerating
	w.report.Text = ""
	w.lastAccess = w.now()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if w.reportTimeout > 0 {
		ctx, cancel = context.WithTimeout(w.ctx, w.reportTimeout)
	} else {
		ctx, cancel = context.WithCancel(w.ctx)
	}
	w.cancelReport = cancel

	records := make(model.RecordSet, len(w.records))
	copy(records, w.records)

	w.bumpLocked()

	go w.runReport(ctx, cancel, gen, records)
	return gen
}

func (w *Workspace) runReport(ctx context.Context, cancel context.CancelFunc, gen uint64, records model.RecordSet) {
	defer cancel()

	start := time.Now()
	text, err := w.reporter.GenerateDailyReport(ctx, records)
	w.metrics.RecordReportLatency(time.Since(start))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.report.Generation != gen {
		w.metrics.RecordReportOutcome(metrics.ReportOutcomeStale)
		w.logger.Debug("discarded stale report",
			slog.String("user_id", w.userID),
			slog.Uint64("generation", gen),
		)
		return
	}

	w.cancelReport = nil
	if err != nil {
		w.report.Status = model.ReportFailed
		w.report.Text = report.FailureMessage
		w.metrics.RecordReportOutcome(metrics.ReportOutcomeFailed)
	} else {
		w.report.Status = model.ReportReady
		w.report.Text = text
		if text == report.PlaceholderNoRecords {
			w.metrics.RecordReportOutcome(metrics.ReportOutcomeEmpty)
		} else {
			w.metrics.RecordReportOutcome(metrics.ReportOutcomeReady)
		}
	}
	w.bumpLocked()
}

// DismissReport は日報モーダルを閉じてidleに戻す。
// 生成中であればキャンセルし、その結果は反映されない。最後の本文はExport用に残る。
func (w *Workspace) DismissReport() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.report.Status == model.ReportGenerating {
		w.report.Generation++
		if w.cancelReport != nil {
			w.cancelReport()
			w.cancelReport = nil
		}
	}
	w.report.Status = model.ReportIdle
	w.bumpLocked()
}

// Export は最後に生成した日報と全記録をNotion貼り付け用テキストにする。
func (w *Workspace) Export() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return report.CopyForNotion(w.report.Text, w.records, w.loc)
}

// Attach はストリーム接続の開始を記録する。接続中のワークスペースは解放されない。
func (w *Workspace) Attach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchers++
	w.lastAccess = w.now()
}

// Detach はストリーム接続の終了を記録する。
func (w *Workspace) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchers > 0 {
		w.watchers--
	}
	w.lastAccess = w.now()
}

func (w *Workspace) idleSince(now time.Time) (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchers > 0 || w.report.Status == model.ReportGenerating {
		return 0, false
	}
	return now.Sub(w.lastAccess), true
}
