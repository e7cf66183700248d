package security

import (
	"strings"
	"testing"
)

func TestTextSanitizer_StripsMarkup(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキスト", "今日はよく頑張りましたね！", "今日はよく頑張りましたね！"},
		{"Markdownは保持", "## まとめ\n- **仕事** を進めました", "## まとめ\n- **仕事** を進めました"},
		{"pタグ除去", "<p>お疲れさまでした</p>", "お疲れさまでした"},
		{"scriptタグ除去", `<script>alert("xss")</script>休憩しましょう`, "休憩しましょう"},
		{"記号は復元", `A & B "quoted" 'single'`, `A & B "quoted" 'single'`},
		{"前後の空白除去", "\n  本文  \n", "本文"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_OnEventAttributesRemoved(t *testing.T) {
	s := NewTextSanitizer()

	got := s.Sanitize(`<img src=x onerror="alert(1)">画像`)
	if strings.Contains(got, "onerror") || strings.Contains(got, "<img") {
		t.Errorf("Sanitize left markup: %q", got)
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := "## 今日の振り返り\n- 09:00 [仕事] 会議\n<b>太字</b>"
	first := s.Sanitize(input)
	second := s.Sanitize(first)
	if first != second {
		t.Errorf("冪等性違反: 1回目=%q, 2回目=%q", first, second)
	}
}
