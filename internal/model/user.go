// Package model はドメインモデルを定義する。
package model

import "time"

// User は匿名ユーザーを表す。
// IDはデータのパーティションキーとしてのみ使用し、プロフィール情報は持たない。
type User struct {
	ID        string
	CreatedAt time.Time
}

// Session はユーザーのサインインセッションを表す。
// セッションCookieが保持される限り、匿名IDはブラウザ間のセッションをまたいで安定する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
