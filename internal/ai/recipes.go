package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// ErrMalformedRecipes はレシピ応答が解釈できない場合のエラー。
var ErrMalformedRecipes = errors.New("レシピ提案の形式が不正です")

const recipeSystemPrompt = `あなたは家庭の食品在庫アプリの料理アシスタントです。
疲れている利用者が手早く作れる料理を、期限が近い食材を優先して提案してください。

方針:
- 調理時間は最大30分の簡単なものにする
- 期限が近い商品を優先する
- 現実的な食材の組み合わせにする
- 落ち着いた分かりやすい表現にする
- 家庭でよく作られる料理を中心にする

説明文は付けず、正しいJSON配列のみを返すこと。`

// RecipeGenerator は在庫からレシピ提案を生成する。
type RecipeGenerator struct {
	gen Generator
}

// NewRecipeGenerator はRecipeGeneratorを生成する。
func NewRecipeGenerator(gen Generator) *RecipeGenerator {
	return &RecipeGenerator{gen: gen}
}

// Generate はproductsを使うレシピをlimit件まで生成する。
// productsは緊急度順に並んでいることを前提とする。
func (g *RecipeGenerator) Generate(ctx context.Context, products []*model.Product, limit int, now time.Time) ([]model.SuggestionProps, error) {
	text, err := g.gen.Generate(ctx, recipeSystemPrompt, genai.Text(buildRecipePrompt(products, limit, now)))
	if err != nil {
		return nil, fmt.Errorf("レシピ提案の生成に失敗しました: %w", err)
	}

	props, err := parseRecipes(text, products)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(props) > limit {
		props = props[:limit]
	}
	return props, nil
}

func buildRecipePrompt(products []*model.Product, limit int, now time.Time) string {
	var list strings.Builder
	for _, p := range products {
		expiry := "期限なし"
		if days, ok := p.DaysUntilExpiry(now); ok {
			expiry = fmt.Sprintf("あと%d日", days)
		}
		fmt.Fprintf(&list, "- %s [id:%s] (%s, %s)\n", p.Name, p.ID, p.Urgency(now), expiry)
	}

	return fmt.Sprintf(`利用者の在庫から、今日作れる簡単なレシピを%d件まで提案してください。

在庫（緊急度順）:
%s
条件:
- 提案は最大%d件
- 期限が近い商品（use_today、use_soon）を使うレシピを優先する
- 調理時間の目安: "quick"（約10分）、"medium"（約20分）、"long"（約30分）
- 手順は3〜4ステップで簡潔に
- 上の在庫の商品を使う

次の構造のJSON配列で返すこと:
[
  {
    "title": "料理名",
    "description": "期限が近い食材に触れた短い説明",
    "estimatedTime": "quick" | "medium" | "long",
    "ingredients": [
      {"productId": "在庫のid", "productName": "商品名", "quantity": "分量", "isUrgent": true | false}
    ],
    "steps": ["手順1", "手順2", "手順3"]
  }
]`, limit, list.String(), limit)
}

type recipeJSON struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	EstimatedTime string `json:"estimatedTime"`
	Ingredients   []struct {
		ProductID   string `json:"productId"`
		ProductName string `json:"productName"`
		Quantity    string `json:"quantity"`
		IsUrgent    bool   `json:"isUrgent"`
	} `json:"ingredients"`
	Steps []string `json:"steps"`
}

// parseRecipes は応答をSuggestionPropsに変換する。
// 在庫に存在しないproductIdは捨て、在庫外の材料として扱う。
func parseRecipes(text string, products []*model.Product) ([]model.SuggestionProps, error) {
	raw, ok := extractJSON(text, '[', ']')
	if !ok {
		return nil, ErrMalformedRecipes
	}

	var parsed []recipeJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, errors.Join(ErrMalformedRecipes, err)
	}

	known := make(map[string]*model.Product, len(products))
	for _, p := range products {
		known[p.ID] = p
	}

	out := make([]model.SuggestionProps, 0, len(parsed))
	for _, r := range parsed {
		props := model.SuggestionProps{
			Title:         r.Title,
			Description:   r.Description,
			EstimatedTime: model.EstimatedTime(strings.ToLower(strings.TrimSpace(r.EstimatedTime))),
		}
		for _, ing := range r.Ingredients {
			name := strings.TrimSpace(ing.ProductName)
			ingredient := model.Ingredient{
				Name:     name,
				Quantity: strings.TrimSpace(ing.Quantity),
				IsUrgent: ing.IsUrgent,
			}
			if p, ok := known[ing.ProductID]; ok {
				id := p.ID
				ingredient.ProductID = &id
				if ingredient.Name == "" {
					ingredient.Name = p.Name
				}
			}
			if ingredient.Name == "" {
				continue
			}
			props.Ingredients = append(props.Ingredients, ingredient)
			if ingredient.IsUrgent {
				props.UrgentIngredients = append(props.UrgentIngredients, ingredient.Name)
			}
		}
		for _, step := range r.Steps {
			if s := strings.TrimSpace(step); s != "" {
				props.Steps = append(props.Steps, s)
			}
		}
		out = append(out, props)
	}
	return out, nil
}
