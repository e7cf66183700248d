// Package model はドメインモデルを定義する。
package model

import "time"

// Category は記録のカテゴリIDを表す。
type Category string

const (
	CategoryWork     Category = "work"
	CategoryStudy    Category = "study"
	CategoryBreak    Category = "break"
	CategoryMeal     Category = "meal"
	CategoryExercise Category = "exercise"
	CategorySleep    Category = "sleep"
	CategoryOther    Category = "other"
)

// DefaultCategory は初期選択カテゴリ。
const DefaultCategory = CategoryWork

// CategoryInfo はカテゴリの表示情報を表す。
type CategoryInfo struct {
	ID    Category
	Label string
	Icon  string
}

// categories はカテゴリの固定列挙。表示順を保持する。
var categories = []CategoryInfo{
	{ID: CategoryWork, Label: "仕事", Icon: "briefcase"},
	{ID: CategoryStudy, Label: "勉強", Icon: "book-open"},
	{ID: CategoryBreak, Label: "休憩", Icon: "coffee"},
	{ID: CategoryMeal, Label: "食事", Icon: "utensils"},
	{ID: CategoryExercise, Label: "運動", Icon: "dumbbell"},
	{ID: CategorySleep, Label: "睡眠", Icon: "moon"},
	{ID: CategoryOther, Label: "その他", Icon: "more-horizontal"},
}

// Categories は全カテゴリを表示順で返す。
// 呼び出し側が変更しても列挙には影響しない。
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

// LookupCategory はIDに対応するカテゴリ情報を返す。
func LookupCategory(id Category) (CategoryInfo, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return CategoryInfo{}, false
}

// Valid はカテゴリが列挙に含まれるかを返す。
func (c Category) Valid() bool {
	_, ok := LookupCategory(c)
	return ok
}

// Label はカテゴリの表示ラベルを返す。列挙外の場合は空文字列。
func (c Category) Label() string {
	info, _ := LookupCategory(c)
	return info.Label
}

// LogEntry は1件の活動記録を表す。
// 作成後は変更されず、削除のみ可能。
type LogEntry struct {
	ID       string
	UserID   string
	Category Category
	Memo     string
	// Timestamp はサーバー側で書き込み時に付与される。
	// コミット前のプレースホルダーとしてnilを許容する。
	Timestamp *time.Time
}

// EffectiveTime はソートや日付判定に用いる時刻を返す。
// タイムスタンプ未確定の記録はnowとして扱う。
func (e LogEntry) EffectiveTime(now time.Time) time.Time {
	if e.Timestamp == nil {
		return now
	}
	return *e.Timestamp
}

// RecordSet はユーザーの記録全件のスナップショット。
// タイムスタンプ降順に並んでいる。
type RecordSet []LogEntry
