// Package suggestion は在庫状況からの提案（買い足し候補・レシピ）のユースケースを提供する。
package suggestion

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/hitoshi/kitchenstock/internal/model"
	"github.com/hitoshi/kitchenstock/internal/repository"
	"github.com/hitoshi/kitchenstock/internal/usecase"
)

// DefaultRecipeLimit はレシピ提案数を省略した場合の既定値。
const DefaultRecipeLimit = 5

// MaxRecipeLimit は一度に生成できるレシピ提案の上限。
const MaxRecipeLimit = 10

// RecipeGenerator はレシピ生成のインターフェース。
type RecipeGenerator interface {
	Generate(ctx context.Context, products []*model.Product, limit int, now time.Time) ([]model.SuggestionProps, error)
}

// ActiveProductLister は使い切っていない商品の取得インターフェース。
type ActiveProductLister interface {
	ListActive(ctx context.Context, userID model.UserID) ([]*model.Product, error)
}

// LinkedItemFinder は買い物リストから参照されている商品IDの取得インターフェース。
type LinkedItemFinder interface {
	LinkedProductIDs(ctx context.Context, userID model.UserID) (map[string]struct{}, error)
}

// Service は提案のユースケース層。読み取り専用で、何も永続化しない。
type Service struct {
	products     ActiveProductLister
	items        LinkedItemFinder
	generator    RecipeGenerator
	defaultLimit int
	rt           usecase.Runtime
}

// NewService はServiceの新しいインスタンスを生成する。
// defaultLimitが0以下の場合はDefaultRecipeLimitを使う。
func NewService(
	products ActiveProductLister,
	items LinkedItemFinder,
	generator RecipeGenerator,
	defaultLimit int,
	opts ...usecase.Option,
) *Service {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRecipeLimit
	}
	return &Service{
		products:     products,
		items:        items,
		generator:    generator,
		defaultLimit: min(defaultLimit, MaxRecipeLimit),
		rt:           usecase.NewRuntime(opts...),
	}
}

// SuggestShoppingItems は買い足し候補を返す。
// 期限切れ・期限間近・残りわずかの商品のうち、まだ買い物リストに無いものが対象。
// 期限切れ、期限間近（緊急度順）、残りわずかの順に並べ、同順位は名前順とする。
func (s *Service) SuggestShoppingItems(ctx context.Context, userID model.UserID) ([]model.ShoppingSuggestion, error) {
	active, err := s.products.ListActive(ctx, userID)
	if err != nil {
		return nil, model.SuggestionErrorFromRepository(err)
	}

	now := s.rt.Clock()
	suggestions := make([]model.ShoppingSuggestion, 0)
	for _, p := range active {
		reason, ok := shoppingReason(p, now)
		if !ok {
			continue
		}
		suggestions = append(suggestions, model.ShoppingSuggestion{
			ProductID: p.ID,
			Name:      p.Name,
			Reason:    reason,
			Urgency:   p.Urgency(now),
		})
	}
	if len(suggestions) == 0 {
		return suggestions, nil
	}

	linked, err := s.items.LinkedProductIDs(ctx, userID)
	if err != nil {
		return nil, model.SuggestionErrorFromRepository(err)
	}
	suggestions = slices.DeleteFunc(suggestions, func(sg model.ShoppingSuggestion) bool {
		_, ok := linked[sg.ProductID]
		return ok
	})

	sort.SliceStable(suggestions, func(i, j int) bool {
		ri, rj := suggestionRank(suggestions[i]), suggestionRank(suggestions[j])
		if ri != rj {
			return ri < rj
		}
		return suggestions[i].Name < suggestions[j].Name
	})
	return suggestions, nil
}

// shoppingReason は商品を買い足し候補とする理由を判定する。
func shoppingReason(p *model.Product, now time.Time) (model.ShoppingSuggestionReason, bool) {
	switch u := p.Urgency(now); {
	case u == model.UrgencyWouldntTrust:
		return model.ReasonExpired, true
	case u == model.UrgencyUseToday || u == model.UrgencyUseSoon:
		return model.ReasonExpiringSoon, true
	case p.Status == model.ProductStatusAlmostEmpty:
		return model.ReasonAlmostEmpty, true
	}
	return "", false
}

func suggestionRank(s model.ShoppingSuggestion) int {
	switch s.Reason {
	case model.ReasonExpired:
		return 0
	case model.ReasonExpiringSoon:
		return 1 + s.Urgency.Rank()
	default:
		return 10
	}
}

// GenerateRecipes は在庫の商品からレシピ提案を生成する。
// 期限切れの商品は材料に含めず、緊急度の高い順に生成器へ渡す。
// 使える商品が無い場合は生成器を呼ばずに空の結果を返す。
func (s *Service) GenerateRecipes(ctx context.Context, userID model.UserID, limit int) ([]*model.Suggestion, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, MaxRecipeLimit)

	active, err := s.products.ListActive(ctx, userID)
	if err != nil {
		return nil, model.SuggestionErrorFromRepository(err)
	}

	now := s.rt.Clock()
	usable := make([]*model.Product, 0, len(active))
	for _, p := range active {
		if !p.IsExpired(now) {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return []*model.Suggestion{}, nil
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Urgency(now).Rank() < usable[j].Urgency(now).Rank()
	})

	if s.generator == nil {
		return nil, model.NewSuggestionError(model.CodeGenerationFailed, nil)
	}
	start := time.Now()
	props, err := s.generator.Generate(ctx, usable, limit, now)
	s.rt.ObserveAI("generate_recipes", start, err)
	if err != nil {
		s.rt.Logger.WarnContext(ctx, "レシピの生成に失敗しました",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSuggestionError(model.CodeGenerationFailed, err)
	}

	suggestions := make([]*model.Suggestion, 0, len(props))
	var lastErr error
	for _, p := range props {
		sg, err := model.NewSuggestion(s.clean(p), now)
		if err != nil {
			lastErr = err
			s.rt.Logger.WarnContext(ctx, "不正なレシピ提案を除外しました",
				slog.String("code", string(model.ErrorCodeOf(err))),
			)
			continue
		}
		suggestions = append(suggestions, sg)
	}
	if len(suggestions) == 0 && lastErr != nil {
		return nil, model.NewSuggestionError(model.CodeInvalidSuggestion, lastErr)
	}
	return suggestions, nil
}

// clean は生成されたテキストからマークアップを取り除く。
func (s *Service) clean(p model.SuggestionProps) model.SuggestionProps {
	p.Title = s.rt.Clean(p.Title)
	p.Description = s.rt.Clean(p.Description)

	ingredients := make([]model.Ingredient, 0, len(p.Ingredients))
	for _, ing := range p.Ingredients {
		ing.Name = s.rt.Clean(ing.Name)
		ing.Quantity = s.rt.Clean(ing.Quantity)
		if ing.Name == "" {
			continue
		}
		ingredients = append(ingredients, ing)
	}
	p.Ingredients = ingredients

	urgent := make([]string, 0, len(p.UrgentIngredients))
	for _, u := range p.UrgentIngredients {
		if c := s.rt.Clean(u); c != "" {
			urgent = append(urgent, c)
		}
	}
	p.UrgentIngredients = urgent

	steps := make([]string, 0, len(p.Steps))
	for _, st := range p.Steps {
		if c := s.rt.Clean(st); c != "" {
			steps = append(steps, c)
		}
	}
	p.Steps = steps
	return p
}

var (
	_ ActiveProductLister = (repository.ProductRepository)(nil)
	_ LinkedItemFinder    = (repository.ShoppingItemRepository)(nil)
)
