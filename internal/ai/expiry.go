package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/hitoshi/kitchenstock/internal/model"
)

const expirySystemPrompt = `あなたは家庭の食品在庫アプリの消費期限推定アシスタントです。
商品名・現在の状態・保管場所から、今日から何日後に食べられなくなるかを推定してください。

ルール:
1. 次のフィールドを持つJSONオブジェクトのみを返すこと
   - "daysUntilExpiry": 今日から期限までの日数（整数）
   - "confidence": "high"（よく知られた商品）、"medium"（妥当な推測）、"low"（不確か）、"none"（推定不可）
2. 状態: "new" は未開封、"opened" は開封済み、"almost_empty" は残りわずか
3. 保管場所: "fridge" は冷蔵、"freezer" は冷凍（大きく延びる）、"pantry" または未指定は常温
4. 賞味期限表示ではなく食品衛生の目安に基づくこと
5. 推定できない場合（「食べ物」のように曖昧な場合など）は {"daysUntilExpiry":null,"confidence":"none"} を返すこと

例:
{"daysUntilExpiry":3,"confidence":"high"}
{"daysUntilExpiry":180,"confidence":"high"}
{"daysUntilExpiry":null,"confidence":"none"}`

// expiryAnswer はAIの回答を日数のまま保持する。日付は呼び出し時点から計算する。
type expiryAnswer struct {
	days       *int
	confidence model.Confidence
}

// ExpiryEstimator はAIで商品の期限を推定する。
// リクエスト間で状態を持たず、呼び出しごとに生成器へ問い合わせる。
type ExpiryEstimator struct {
	gen Generator
	now func() time.Time
}

// NewExpiryEstimator はExpiryEstimatorを生成する。
func NewExpiryEstimator(gen Generator) *ExpiryEstimator {
	return &ExpiryEstimator{gen: gen, now: time.Now}
}

// Estimate は期限を推定する。
// AI呼び出し自体が失敗した場合のみエラーを返す。
// 応答が解釈できない場合はConfidenceがnoneの結果を返す。
func (e *ExpiryEstimator) Estimate(ctx context.Context, name string, status model.ProductStatus, location *model.ProductLocation) (model.ExpiryEstimation, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "商品: %s\n状態: %s\n", name, status)
	if location != nil {
		fmt.Fprintf(&prompt, "保管場所: %s\n", *location)
	}
	prompt.WriteString("期限を推定してください。")

	text, err := e.gen.Generate(ctx, expirySystemPrompt, genai.Text(prompt.String()))
	if err != nil {
		return model.ExpiryEstimation{}, fmt.Errorf("期限推定に失敗しました: %w", err)
	}

	return parseExpiry(text).at(e.now()), nil
}

func (c expiryAnswer) at(now time.Time) model.ExpiryEstimation {
	if c.days == nil {
		return model.ExpiryEstimation{Confidence: c.confidence}
	}
	d := now.UTC().AddDate(0, 0, *c.days)
	return model.ExpiryEstimation{Date: &d, Confidence: c.confidence}
}

func parseExpiry(text string) expiryAnswer {
	none := expiryAnswer{confidence: model.ConfidenceNone}

	raw, ok := extractJSON(text, '{', '}')
	if !ok {
		return none
	}

	var parsed struct {
		Days       *int   `json:"daysUntilExpiry"`
		Confidence string `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return none
	}

	confidence, err := model.ParseConfidence(parsed.Confidence)
	if err != nil {
		confidence = model.ConfidenceNone
	}
	if parsed.Days == nil || confidence == model.ConfidenceNone {
		return expiryAnswer{confidence: confidence}
	}

	days := *parsed.Days
	if days < 0 {
		days = 0
	}
	return expiryAnswer{days: &days, confidence: confidence}
}
