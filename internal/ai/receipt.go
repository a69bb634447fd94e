package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// ErrUnreadableReceipt はレシートから品目を読み取れなかった場合のエラー。
var ErrUnreadableReceipt = errors.New("レシートを読み取れませんでした")

const receiptSystemPrompt = `あなたは家庭の食品在庫アプリのレシート読み取りアシスタントです。
スーパーのレシート画像から商品名を抽出してください。
"name" と "confidence" を持つオブジェクトのJSON配列のみを返すこと。
- "name": 日本語の商品名（ブランド名・容量・価格は含めない）
- "confidence": はっきり読める場合は "high"、不確かな場合は "low"
- 食品以外（レジ袋、値引き、合計、店舗情報）は除外すること
- 「牛乳」のように簡潔にし、「ﾒｲｼﾞｵｲｼｲｷﾞｭｳﾆｭｳ 1000ML 238」のようにはしないこと

出力例:
[{"name":"牛乳","confidence":"high"},{"name":"食パン","confidence":"high"},{"name":"りんご","confidence":"low"}]`

// ReceiptScanner はレシート画像から品目を読み取る。
type ReceiptScanner struct {
	gen Generator
}

// NewReceiptScanner はReceiptScannerを生成する。
func NewReceiptScanner(gen Generator) *ReceiptScanner {
	return &ReceiptScanner{gen: gen}
}

// Scan はbase64エンコードされたレシート画像から品目を読み取る。
// 品目が1件も無い場合は空スライスを返す。
func (s *ReceiptScanner) Scan(ctx context.Context, imageBase64 string) ([]model.ReceiptItem, error) {
	format, data, err := decodeImage(imageBase64)
	if err != nil {
		return nil, err
	}

	text, err := s.gen.Generate(ctx, receiptSystemPrompt,
		genai.ImageData(format, data),
		genai.Text("このレシートから商品名を抽出してください。"),
	)
	if err != nil {
		return nil, fmt.Errorf("レシートの読み取りに失敗しました: %w", err)
	}
	return parseReceipt(text)
}

func parseReceipt(text string) ([]model.ReceiptItem, error) {
	raw, ok := extractJSON(text, '[', ']')
	if !ok {
		return nil, ErrUnreadableReceipt
	}

	var parsed []struct {
		Name       string `json:"name"`
		Confidence string `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, errors.Join(ErrUnreadableReceipt, err)
	}

	items := make([]model.ReceiptItem, 0, len(parsed))
	for _, p := range parsed {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		confidence := model.ConfidenceHigh
		if strings.EqualFold(p.Confidence, string(model.ConfidenceLow)) {
			confidence = model.ConfidenceLow
		}
		items = append(items, model.ReceiptItem{Name: name, Confidence: confidence})
	}
	return items, nil
}
