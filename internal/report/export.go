package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/Syuney-mls/life-log/internal/model"
)

// CopyForNotion は日報本文と全記録をNotion貼り付け用のプレーンテキストにする。
// 入力が同じなら出力も同じになる純粋関数。記録は渡された順に並ぶ。
//
//	# 日報
//
//	<report>
//
//	## 詳細
//	- 9:05:00 メモ
func CopyForNotion(report string, records model.RecordSet, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	b.WriteString("# 日報\n\n")
	b.WriteString(report)
	b.WriteString("\n\n## 詳細\n")
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(formatClock(r.Timestamp, loc))
		b.WriteString(" ")
		b.WriteString(r.Memo)
	}
	return b.String()
}

// formatClock は時刻を日本語ロケールの既定形式（時は0埋めなし）で返す。
// 未確定のタイムスタンプは"--:--:--"とする。
func formatClock(ts *time.Time, loc *time.Location) string {
	if ts == nil {
		return "--:--:--"
	}
	t := ts.In(loc)
	return fmt.Sprintf("%d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}
