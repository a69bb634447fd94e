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

// ErrNotIdentified は商品を特定できなかった場合のエラー。
var ErrNotIdentified = errors.New("商品を特定できませんでした")

const identifySystemPrompt = `あなたは家庭の食品在庫アプリの商品識別アシスタントです。
画像に写っている食品を1つだけ識別してください。
次のフィールドを持つJSONオブジェクトのみを返すこと:
- "name": 日本語の商品名（ブランド名・容量・価格は含めない）
- "confidence": はっきり識別できる場合は "high"、不確かな場合は "low"
- "suggestedLocation": 一般的な保管場所 "fridge"、"pantry"、"freezer" のいずれか（省略可）
- "suggestedQuantity": パッケージから読み取れる数量。例: "1 L"、"500 g"（省略可）
まったく識別できない場合は {"name":"","confidence":"low"} を返すこと。

例:
{"name":"プレーンヨーグルト","confidence":"high","suggestedLocation":"fridge","suggestedQuantity":"400 g"}
{"name":"米","confidence":"high","suggestedLocation":"pantry"}`

// BarcodeLookup はバーコードから商品情報を引くインターフェース。
type BarcodeLookup interface {
	Lookup(ctx context.Context, barcode string) (*model.ProductIdentification, error)
}

// Identifier は画像またはバーコードから商品を識別する。
type Identifier struct {
	gen     Generator
	barcode BarcodeLookup
}

// NewIdentifier はIdentifierを生成する。
// genがnilの場合は画像識別が、barcodeがnilの場合はバーコード識別が常に失敗する。
func NewIdentifier(gen Generator, barcode BarcodeLookup) *Identifier {
	return &Identifier{gen: gen, barcode: barcode}
}

// IdentifyByImage はbase64エンコードされた画像から商品を識別する。
func (i *Identifier) IdentifyByImage(ctx context.Context, imageBase64 string) (*model.ProductIdentification, error) {
	if i.gen == nil {
		return nil, fmt.Errorf("画像識別は利用できません: %w", ErrNotIdentified)
	}
	format, data, err := decodeImage(imageBase64)
	if err != nil {
		return nil, err
	}

	text, err := i.gen.Generate(ctx, identifySystemPrompt,
		genai.ImageData(format, data),
		genai.Text("この食品を識別してください。"),
	)
	if err != nil {
		return nil, fmt.Errorf("画像識別に失敗しました: %w", err)
	}
	return parseIdentification(text)
}

// IdentifyByBarcode はバーコードから商品を識別する。
func (i *Identifier) IdentifyByBarcode(ctx context.Context, barcode string) (*model.ProductIdentification, error) {
	if i.barcode == nil {
		return nil, ErrNotIdentified
	}
	return i.barcode.Lookup(ctx, barcode)
}

func parseIdentification(text string) (*model.ProductIdentification, error) {
	raw, ok := extractJSON(text, '{', '}')
	if !ok {
		return nil, fmt.Errorf("識別結果にJSONが含まれていません: %w", ErrNotIdentified)
	}

	var parsed struct {
		Name              string  `json:"name"`
		Confidence        string  `json:"confidence"`
		SuggestedLocation string  `json:"suggestedLocation"`
		SuggestedQuantity *string `json:"suggestedQuantity"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("識別結果の解析に失敗しました: %w", errors.Join(ErrNotIdentified, err))
	}

	name := strings.TrimSpace(parsed.Name)
	if name == "" {
		return nil, ErrNotIdentified
	}

	result := &model.ProductIdentification{
		Name:       name,
		Confidence: model.ConfidenceLow,
		Method:     model.IdentificationVisual,
	}
	if strings.EqualFold(parsed.Confidence, string(model.ConfidenceHigh)) {
		result.Confidence = model.ConfidenceHigh
	}
	if loc, err := model.ParseProductLocation(parsed.SuggestedLocation); err == nil {
		result.SuggestedLocation = &loc
	}
	if parsed.SuggestedQuantity != nil {
		if q := strings.TrimSpace(*parsed.SuggestedQuantity); q != "" {
			result.SuggestedQuantity = &q
		}
	}
	return result, nil
}
