// Package ai は生成AIを用いた期限推定・商品識別・レシート読み取り・レシピ生成を提供する。
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/option"
)

// ErrEmptyResponse はモデルがテキストを返さなかった場合のエラー。
var ErrEmptyResponse = errors.New("AIの応答にテキストが含まれていません")

// Generator はシステムプロンプトと入力パーツからテキストを生成するインターフェース。
type Generator interface {
	Generate(ctx context.Context, system string, parts ...genai.Part) (string, error)
}

// GeminiClient はGoogle Gemini APIを使うGenerator。
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient はAPIキーとモデル名からGeminiClientを生成する。
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの生成に失敗しました: %w", err)
	}
	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

// Generate はモデルにプロンプトを送り、生成されたテキストを返す。
func (c *GeminiClient) Generate(ctx context.Context, system string, parts ...genai.Part) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.1)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("コンテンツ生成に失敗しました: %w", err)
	}
	return responseText(resp)
}

// Close は内部のクライアントを閉じる。
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// responseText は最初の候補のテキストパーツを連結して返す。
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// breakerGenerator はGeneratorをサーキットブレーカーで包む。
type breakerGenerator struct {
	next    Generator
	breaker *gobreaker.CircuitBreaker[string]
}

// WithCircuitBreaker はnextへの呼び出しをサーキットブレーカー経由にしたGeneratorを返す。
// 直近3件以上の呼び出しのうち6割以上が失敗すると一定時間呼び出しを遮断する。
func WithCircuitBreaker(next Generator, name string) Generator {
	return &breakerGenerator{next: next, breaker: NewBreaker[string](name)}
}

// Generate はブレーカーが開いている場合はgobreaker.ErrOpenStateを返す。
func (g *breakerGenerator) Generate(ctx context.Context, system string, parts ...genai.Part) (string, error) {
	return g.breaker.Execute(func() (string, error) {
		return g.next.Generate(ctx, system, parts...)
	})
}

// NewBreaker は外部呼び出し用のサーキットブレーカーを生成する。
// expectedに含まれるエラーと呼び出し元のキャンセルは失敗として数えない。
func NewBreaker[T any](name string, expected ...error) *gobreaker.CircuitBreaker[T] {
	var st gobreaker.Settings
	st.Name = name
	st.Timeout = 30 * time.Second
	st.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) {
			return true
		}
		for _, e := range expected {
			if errors.Is(err, e) {
				return true
			}
		}
		return false
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && failureRatio >= 0.6
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("サーキットブレーカーの状態が変化しました",
			slog.String("name", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
	return gobreaker.NewCircuitBreaker[T](st)
}

var (
	_ Generator = (*GeminiClient)(nil)
	_ Generator = (*breakerGenerator)(nil)
)
