// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, store, report, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeWriteFailed      = "WRITE_FAILED"
	ErrCodeEntryNotFound    = "ENTRY_NOT_FOUND"
	ErrCodeInvalidCategory  = "INVALID_CATEGORY"
	ErrCodeInvalidTab       = "INVALID_TAB"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeCSRFFailed       = "CSRF_FAILED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewAuthFailedError は匿名サインイン失敗エラーを生成する。
// クライアントは同じリクエストを再送することで回復できる。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "サインインに失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度サインインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewWriteFailedError は記録の保存・削除失敗エラーを生成する。
// 入力中のメモは破棄されない。
func NewWriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeWriteFailed,
		Message:  "保存に失敗しました",
		Category: "store",
		Action:   "入力内容は保持されています。通信環境を確認して再度お試しください。",
	}
}

// NewEntryNotFoundError は記録未検出エラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定された記録が見つかりません: %s", entryID),
		Category: "store",
		Action:   "履歴を更新してから再度お試しください。",
	}
}

// NewInvalidCategoryError は無効なカテゴリエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "work、study、break、meal、exercise、sleep、other のいずれかを指定してください。",
	}
}

// NewInvalidTabError は無効なタブ指定エラーを生成する。
func NewInvalidTabError(tab string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTab,
		Message:  fmt.Sprintf("無効なタブです: %s", tab),
		Category: "validation",
		Action:   "タブには input または history を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}

// NewGenerationFailedError はレポート生成失敗エラーを生成する。
// ユーザーには詳細を見せず、ログとメトリクスにのみ使用する。
func NewGenerationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  fmt.Sprintf("レポートの生成に失敗しました: %s", reason),
		Category: "report",
		Action:   "もう一度まとめ作成を実行してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "サインインし直してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewCSRFFailedError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
