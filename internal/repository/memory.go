package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// MemoryStore はプロセス内メモリ上の商品・買い物アイテムストア。
// PostgreSQL実装と同じ契約を満たし、テストとSTORAGE=memoryでの起動に使う。
// 保存時・取得時にコピーするため、呼び出し元とインスタンスを共有しない。
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]model.Product
	items    map[string]model.ShoppingItem
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]model.Product),
		items:    make(map[string]model.ShoppingItem),
	}
}

// Products はProductRepositoryとしてのビューを返す。
func (s *MemoryStore) Products() *MemoryProductRepo { return &MemoryProductRepo{s: s} }

// ShoppingItems はShoppingItemRepositoryとしてのビューを返す。
func (s *MemoryStore) ShoppingItems() *MemoryShoppingItemRepo { return &MemoryShoppingItemRepo{s: s} }

// MemoryProductRepo はメモリ上の商品リポジトリ。
type MemoryProductRepo struct {
	s *MemoryStore
}

// FindByID は指定IDの商品を取得する。
func (r *MemoryProductRepo) FindByID(ctx context.Context, userID model.UserID, id string) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	return model.ReconstructProduct(p), nil
}

// List はユーザーの商品をcreated_atの降順で返す。
func (r *MemoryProductRepo) List(ctx context.Context, userID model.UserID, opts ProductListOptions) ([]*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Product
	for _, p := range r.s.products {
		if p.UserID != userID {
			continue
		}
		if opts.Status != nil && p.Status != *opts.Status {
			continue
		}
		if !opts.Cursor.Admits(p.CreatedAt, p.ID) {
			continue
		}
		out = append(out, model.ReconstructProduct(p))
	}
	sortProductsDesc(out)

	if limit := normalizeLimit(opts.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListActive はfinished以外の商品を返す。
func (r *MemoryProductRepo) ListActive(ctx context.Context, userID model.UserID) ([]*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Product
	for _, p := range r.s.products {
		if p.UserID == userID && p.IsActive() {
			out = append(out, model.ReconstructProduct(p))
		}
	}
	sortProductsDesc(out)
	return out, nil
}

// Save は商品を作成または更新する。
func (r *MemoryProductRepo) Save(ctx context.Context, product *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.products[product.ID]; ok && existing.UserID != product.UserID {
		return model.NewRepositoryError(model.RepoErrNotFound, "product.save", nil)
	}
	r.s.products[product.ID] = *product
	return nil
}

// Delete は指定IDの商品を削除する。
func (r *MemoryProductRepo) Delete(ctx context.Context, userID model.UserID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok || p.UserID != userID {
		return model.NewRepositoryError(model.RepoErrNotFound, "product.delete", nil)
	}
	delete(r.s.products, id)
	return nil
}

// DeleteByUserID はユーザーの全商品を削除する。
func (r *MemoryProductRepo) DeleteByUserID(ctx context.Context, userID model.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, p := range r.s.products {
		if p.UserID == userID {
			delete(r.s.products, id)
		}
	}
	return nil
}

// MemoryShoppingItemRepo はメモリ上の買い物アイテムリポジトリ。
type MemoryShoppingItemRepo struct {
	s *MemoryStore
}

// FindByID は指定IDのアイテムを取得する。
func (r *MemoryShoppingItemRepo) FindByID(ctx context.Context, userID model.UserID, id string) (*model.ShoppingItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.items[id]
	if !ok || item.UserID != userID {
		return nil, nil
	}
	return model.ReconstructShoppingItem(item), nil
}

// FindByProductID は商品から導出されたアイテムを取得する。
func (r *MemoryShoppingItemRepo) FindByProductID(ctx context.Context, userID model.UserID, productID string) (*model.ShoppingItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, item := range r.s.items {
		if item.UserID == userID && item.ProductID != nil && *item.ProductID == productID {
			return model.ReconstructShoppingItem(item), nil
		}
	}
	return nil, nil
}

// LinkedProductIDs はユーザーのアイテムが参照している商品IDを返す。
func (r *MemoryShoppingItemRepo) LinkedProductIDs(ctx context.Context, userID model.UserID) (map[string]struct{}, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make(map[string]struct{})
	for _, item := range r.s.items {
		if item.UserID == userID && item.ProductID != nil {
			ids[*item.ProductID] = struct{}{}
		}
	}
	return ids, nil
}

// List はユーザーのアイテムをcreated_atの降順で返す。
func (r *MemoryShoppingItemRepo) List(ctx context.Context, userID model.UserID, opts ShoppingItemListOptions) ([]*model.ShoppingItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.ShoppingItem
	for _, item := range r.s.items {
		if item.UserID != userID {
			continue
		}
		if opts.IsBought != nil && item.IsBought != *opts.IsBought {
			continue
		}
		if !opts.Cursor.Admits(item.CreatedAt, item.ID) {
			continue
		}
		out = append(out, model.ReconstructShoppingItem(item))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit := normalizeLimit(opts.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Save はアイテムを作成または更新する。
func (r *MemoryShoppingItemRepo) Save(ctx context.Context, item *model.ShoppingItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.items[item.ID]; ok && existing.UserID != item.UserID {
		return model.NewRepositoryError(model.RepoErrNotFound, "shopping_item.save", nil)
	}
	if item.ProductID != nil {
		for id, other := range r.s.items {
			if id != item.ID && other.UserID == item.UserID &&
				other.ProductID != nil && *other.ProductID == *item.ProductID {
				return model.NewRepositoryError(model.RepoErrDuplicated, "shopping_item.save", nil)
			}
		}
	}

	stored := *item
	if item.ProductID != nil {
		pid := *item.ProductID
		stored.ProductID = &pid
	}
	r.s.items[item.ID] = stored
	return nil
}

// Delete は指定IDのアイテムを削除する。
func (r *MemoryShoppingItemRepo) Delete(ctx context.Context, userID model.UserID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.items[id]
	if !ok || item.UserID != userID {
		return model.NewRepositoryError(model.RepoErrNotFound, "shopping_item.delete", nil)
	}
	delete(r.s.items, id)
	return nil
}

// DeleteByProductID は商品から導出されたアイテムを削除する。
func (r *MemoryShoppingItemRepo) DeleteByProductID(ctx context.Context, userID model.UserID, productID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, item := range r.s.items {
		if item.UserID == userID && item.ProductID != nil && *item.ProductID == productID {
			delete(r.s.items, id)
			n++
		}
	}
	return n, nil
}

// UnlinkProduct は商品への参照を切り離す。
func (r *MemoryShoppingItemRepo) UnlinkProduct(ctx context.Context, userID model.UserID, productID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for id, item := range r.s.items {
		if item.UserID == userID && item.ProductID != nil && *item.ProductID == productID {
			item.Unlink(now)
			r.s.items[id] = item
		}
	}
	return nil
}

// DeleteBought は購入済みアイテムを削除する。
func (r *MemoryShoppingItemRepo) DeleteBought(ctx context.Context, userID model.UserID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, item := range r.s.items {
		if item.UserID == userID && item.IsBought {
			delete(r.s.items, id)
			n++
		}
	}
	return n, nil
}

// DeleteByUserID はユーザーの全アイテムを削除する。
func (r *MemoryShoppingItemRepo) DeleteByUserID(ctx context.Context, userID model.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, item := range r.s.items {
		if item.UserID == userID {
			delete(r.s.items, id)
		}
	}
	return nil
}

// PurgeBoughtBefore は全ユーザーを対象に、cutoffより前に購入済みになったアイテムを削除する。
// クリーンアップジョブ用。
func (s *MemoryStore) PurgeBoughtBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, item := range s.items {
		if item.IsBought && item.BoughtAt != nil && item.BoughtAt.Before(cutoff) {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func sortProductsDesc(ps []*model.Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID > ps[j].ID
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

var (
	_ ProductRepository      = (*MemoryProductRepo)(nil)
	_ ShoppingItemRepository = (*MemoryShoppingItemRepo)(nil)
)
