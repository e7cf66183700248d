// Package report は当日の記録から日報を生成し、エクスポート用テキストを組み立てる。
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Syuney-mls/life-log/internal/model"
)

const (
	// PlaceholderNoRecords は当日の記録がない場合に返す固定文言。
	PlaceholderNoRecords = "今日の記録がまだありません。"
	// FailureMessage は生成に失敗した場合に返す固定文言。失敗の種類は区別しない。
	FailureMessage = "エラーが発生しました。"
	// GeneratingMessage は生成中に表示する文言。
	GeneratingMessage = "AIが分析中..."
)

// promptTemplate は生成AIに渡す指示文。%sに時系列順のログ行が入る。
const promptTemplate = `あなたは優秀なライフログ・アシスタントです。以下のログをもとに1日のまとめを作成してください。
文体は「〜ですね！」等の明るい口調で。マークダウン形式で出力してください。
ログ:
%s`

// Generator はプロンプトから文章を生成する外部サービスのインターフェース。
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Sanitizer は生成結果をプレーンテキストに整えるインターフェース。
type Sanitizer interface {
	Sanitize(text string) string
}

// Composer は日報の生成を行う。
type Composer struct {
	generator Generator
	sanitizer Sanitizer
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewComposer はComposerを生成する。locは日付境界と時刻表示に使う。
func NewComposer(generator Generator, sanitizer Sanitizer, loc *time.Location, logger *slog.Logger) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{
		generator: generator,
		sanitizer: sanitizer,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// Location は日付判定に使うロケーションを返す。
func (c *Composer) Location() *time.Location {
	return c.loc
}

// GenerateDailyReport は当日の記録を生成AIに送り、日報本文を返す。
//
// 当日の記録がなければ外部呼び出しを行わずPlaceholderNoRecordsを返す。
// 失敗時は常にFailureMessageとGENERATION_FAILEDのAPIErrorを返す。
// エラーは記録用であり、利用者にはFailureMessageのみを見せる。
func (c *Composer) GenerateDailyReport(ctx context.Context, records model.RecordSet) (string, error) {
	now := c.now()
	today := FilterToday(records, now, c.loc)
	if len(today) == 0 {
		return PlaceholderNoRecords, nil
	}

	prompt := BuildPrompt(today, now, c.loc)

	text, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		c.logger.Warn("daily report generation failed",
			slog.Int("entries_count", len(today)),
			slog.String("error", err.Error()),
		)
		return FailureMessage, model.NewGenerationFailedError(err.Error())
	}

	if c.sanitizer != nil {
		text = c.sanitizer.Sanitize(text)
	}
	if text == "" {
		return FailureMessage, model.NewGenerationFailedError("empty text after sanitizing")
	}

	return text, nil
}

// FilterToday はnowと同じ暦日（loc基準）の記録だけを、元の順序のまま返す。
// タイムスタンプ未確定の記録はnowとして扱うため常に含まれる。
func FilterToday(records model.RecordSet, now time.Time, loc *time.Location) model.RecordSet {
	ny, nm, nd := now.In(loc).Date()

	today := model.RecordSet{}
	for _, r := range records {
		y, m, d := r.EffectiveTime(now).In(loc).Date()
		if y == ny && m == nm && d == nd {
			today = append(today, r)
		}
	}
	return today
}

// BuildPrompt は新しい順の記録を時系列順に並べ替え、指示文に埋め込む。
// 各行は「- HH:MM [ラベル] メモ」の形式。
func BuildPrompt(records model.RecordSet, now time.Time, loc *time.Location) string {
	lines := make([]string, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		lines = append(lines, fmt.Sprintf("- %s [%s] %s",
			r.EffectiveTime(now).In(loc).Format("15:04"),
			r.Category.Label(),
			r.Memo,
		))
	}
	return fmt.Sprintf(promptTemplate, strings.Join(lines, "\n"))
}
