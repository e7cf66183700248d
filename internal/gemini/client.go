// Package gemini は生成AIのgenerateContent APIクライアントを提供する。
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultEndpoint はgenerateContent APIのベースURL。
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel は既定で使用するモデル名。
	DefaultModel = "gemini-1.5-flash"
	// defaultMaxResponseSize はレスポンスボディの最大読み取りサイズ（1MB）。
	defaultMaxResponseSize = 1 << 20
)

// ErrEmptyResponse はレスポンスに生成テキストが含まれない場合に返される。
var ErrEmptyResponse = errors.New("gemini: response has no candidate text")

// Config はクライアントの設定。
type Config struct {
	APIKey          string
	Endpoint        string
	Model           string
	MaxResponseSize int64
}

// Client はgenerateContent APIのクライアント。
type Client struct {
	httpClient      *http.Client
	logger          *slog.Logger
	apiKey          string
	endpoint        string
	model           string
	maxResponseSize int64
}

// NewClient はClientの新しいインスタンスを生成する。
// 未指定の設定値は既定値で補う。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = defaultMaxResponseSize
	}
	return &Client{
		httpClient:      httpClient,
		logger:          logger,
		apiKey:          cfg.APIKey,
		endpoint:        strings.TrimRight(cfg.Endpoint, "/"),
		model:           cfg.Model,
		maxResponseSize: cfg.MaxResponseSize,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateContent はプロンプトを1回送信し、最初の候補のテキストを返す。
// 再試行は行わない。ステータス異常・JSON不正・候補欠落はすべてエラーとなる。
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	reqURL, err := url.Parse(fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model))
	if err != nil {
		return "", fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("key", c.apiKey)
	reqURL.RawQuery = q.Encode()

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LifeLog/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.ErrorはAPIキーを含むURLを保持するため、内側のエラーだけを扱う
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		c.logger.Error("generateContent APIの呼び出しに失敗しました",
			slog.String("model", c.model),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("generateContent APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		c.logger.Error("generateContent APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("api_status", apiErr.Error.Status),
			slog.String("api_message", apiErr.Error.Message),
		)
		return "", fmt.Errorf("generateContent APIがステータス %d を返しました", resp.StatusCode)
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("generateContent APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	text := result.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}
