// Package model はドメインモデルを定義する。
package model

// ReportStatus はデイリーレポート生成の状態を表す。
//
//	idle → generating → {ready, failed}
//
// ready/failed はモーダルを閉じるとidleに戻り、再生成要求ではgeneratingに直接遷移する。
type ReportStatus string

const (
	ReportIdle       ReportStatus = "idle"
	ReportGenerating ReportStatus = "generating"
	ReportReady      ReportStatus = "ready"
	ReportFailed     ReportStatus = "failed"
)

// Tab はモバイル表示で選択中のタブを表す。
type Tab string

const (
	TabInput   Tab = "input"
	TabHistory Tab = "history"
)

// Valid はタブが定義済みの値かを返す。
func (t Tab) Valid() bool {
	return t == TabInput || t == TabHistory
}
