// Package shopping は買い物リストのユースケースを提供する。
package shopping

import (
	"context"
	"log/slog"

	"github.com/hitoshi/kitchenstock/internal/event"
	"github.com/hitoshi/kitchenstock/internal/model"
	"github.com/hitoshi/kitchenstock/internal/repository"
	"github.com/hitoshi/kitchenstock/internal/usecase"
)

// ProductFinder は商品の存在確認インターフェース。
type ProductFinder interface {
	FindByID(ctx context.Context, userID model.UserID, id string) (*model.Product, error)
}

// CreateParams はアイテム作成時の入力。
// ProductIDを指定した場合は、呼び出し元が所有する商品でなければならない。
type CreateParams struct {
	Name      string
	ProductID *string
}

// UpdateParams はアイテム更新時の入力。nilのフィールドは変更しない。
type UpdateParams struct {
	Name     *string
	IsBought *bool
}

// ListParams はアイテム一覧の取得条件。
type ListParams struct {
	IsBought *bool
	Cursor   repository.Cursor
	Limit    int
}

// Service は買い物リストのユースケース層。
type Service struct {
	items    repository.ShoppingItemRepository
	products ProductFinder
	rt       usecase.Runtime
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(items repository.ShoppingItemRepository, products ProductFinder, opts ...usecase.Option) *Service {
	return &Service{
		items:    items,
		products: products,
		rt:       usecase.NewRuntime(opts...),
	}
}

// Create はアイテムを追加する。
// 同じ商品に紐づくアイテムが既にある場合はDUPLICATEを返す。
func (s *Service) Create(ctx context.Context, userID model.UserID, params CreateParams) (*model.ShoppingItem, error) {
	item, err := model.NewShoppingItem(userID, s.rt.Clean(params.Name), params.ProductID, s.rt.Clock())
	if err != nil {
		return nil, err
	}

	if item.ProductID != nil {
		p, err := s.products.FindByID(ctx, userID, *item.ProductID)
		if err != nil {
			return nil, model.ShoppingItemErrorFromRepository(err)
		}
		if p == nil || p.UserID != userID {
			return nil, model.NewShoppingItemError(model.CodeProductNotFound, nil)
		}
	}

	if err := s.items.Save(ctx, item); err != nil {
		// 確認後に商品が削除された場合は参照先なしとして扱う
		if kind, _ := model.RepositoryKindOf(err); kind == model.RepoErrNotFound && item.ProductID != nil {
			return nil, model.NewShoppingItemError(model.CodeProductNotFound, err)
		}
		return nil, model.ShoppingItemErrorFromRepository(err)
	}

	data := map[string]any{"name": item.Name}
	if item.ProductID != nil {
		data["product_id"] = *item.ProductID
	}
	s.rt.Publish(ctx, event.ShoppingItemCreated, userID, item.ID, data)
	return item, nil
}

// Get はアイテムを1件取得する。
func (s *Service) Get(ctx context.Context, userID model.UserID, id string) (*model.ShoppingItem, error) {
	return s.load(ctx, userID, id)
}

// List はアイテム一覧を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID model.UserID, params ListParams) ([]*model.ShoppingItem, error) {
	items, err := s.items.List(ctx, userID, repository.ShoppingItemListOptions{
		IsBought: params.IsBought,
		Cursor:   params.Cursor,
		Limit:    params.Limit,
	})
	if err != nil {
		return nil, model.ShoppingItemErrorFromRepository(err)
	}
	return items, nil
}

// Update は名前・購入済みフラグを部分更新する。
// 何も変わらない場合は保存せずに現在の値を返す。
func (s *Service) Update(ctx context.Context, userID model.UserID, id string, params UpdateParams) (*model.ShoppingItem, error) {
	item, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.rt.Clock()
	changed := false

	if params.Name != nil {
		before := item.Name
		if err := item.Rename(s.rt.Clean(*params.Name), now); err != nil {
			return nil, err
		}
		changed = item.Name != before
	}
	bought := false
	if params.IsBought != nil && item.SetBought(*params.IsBought, now) {
		changed = true
		bought = item.IsBought
	}

	if !changed {
		return item, nil
	}
	if err := s.items.Save(ctx, item); err != nil {
		return nil, model.ShoppingItemErrorFromRepository(err)
	}

	if bought {
		s.rt.Publish(ctx, event.ShoppingItemBought, userID, item.ID, map[string]any{"name": item.Name})
	}
	return item, nil
}

// Delete はアイテムを削除する。
func (s *Service) Delete(ctx context.Context, userID model.UserID, id string) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	if err := s.items.Delete(ctx, userID, id); err != nil {
		return model.ShoppingItemErrorFromRepository(err)
	}
	s.rt.Publish(ctx, event.ShoppingItemDeleted, userID, id, nil)
	return nil
}

// ClearBought は購入済みのアイテムをすべて削除し、削除件数を返す。
func (s *Service) ClearBought(ctx context.Context, userID model.UserID) (int64, error) {
	n, err := s.items.DeleteBought(ctx, userID)
	if err != nil {
		return 0, model.ShoppingItemErrorFromRepository(err)
	}
	if n > 0 {
		s.rt.Logger.InfoContext(ctx, "購入済みアイテムを削除しました",
			slog.String("user_id", userID.String()),
			slog.Int64("count", n),
		)
		s.rt.Publish(ctx, event.ShoppingItemsCleared, userID, "", map[string]any{"count": n})
	}
	return n, nil
}

func (s *Service) load(ctx context.Context, userID model.UserID, id string) (*model.ShoppingItem, error) {
	item, err := s.items.FindByID(ctx, userID, id)
	if err != nil {
		return nil, model.ShoppingItemErrorFromRepository(err)
	}
	if item == nil || item.UserID != userID {
		return nil, model.NewShoppingItemError(model.CodeNotFound, nil)
	}
	return item, nil
}
