// Package product は在庫商品の管理とAIによる補助（期限推定・商品識別・レシート読み取り）の
// ユースケースを提供する。
package product

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/kitchenstock/internal/event"
	"github.com/hitoshi/kitchenstock/internal/model"
	"github.com/hitoshi/kitchenstock/internal/repository"
	"github.com/hitoshi/kitchenstock/internal/usecase"
)

// ExpiryEstimator は期限推定のインターフェース。
type ExpiryEstimator interface {
	Estimate(ctx context.Context, name string, status model.ProductStatus, location *model.ProductLocation) (model.ExpiryEstimation, error)
}

// Identifier は画像・バーコードから商品を識別するインターフェース。
type Identifier interface {
	IdentifyByImage(ctx context.Context, imageBase64 string) (*model.ProductIdentification, error)
	IdentifyByBarcode(ctx context.Context, barcode string) (*model.ProductIdentification, error)
}

// ReceiptScanner はレシート画像から品目を読み取るインターフェース。
type ReceiptScanner interface {
	Scan(ctx context.Context, imageBase64 string) ([]model.ReceiptItem, error)
}

// ListParams は商品一覧の取得条件。
type ListParams struct {
	Status *model.ProductStatus
	Cursor repository.Cursor
	Limit  int
}

// Service は商品のユースケース層。
type Service struct {
	products   repository.ProductRepository
	items      repository.ShoppingItemRepository
	estimator  ExpiryEstimator
	identifier Identifier
	scanner    ReceiptScanner
	rt         usecase.Runtime
}

// NewService はServiceの新しいインスタンスを生成する。
// estimator・identifier・scannerはnilでもよく、その場合は対応する操作が失敗を返す。
func NewService(
	products repository.ProductRepository,
	items repository.ShoppingItemRepository,
	estimator ExpiryEstimator,
	identifier Identifier,
	scanner ReceiptScanner,
	opts ...usecase.Option,
) *Service {
	return &Service{
		products:   products,
		items:      items,
		estimator:  estimator,
		identifier: identifier,
		scanner:    scanner,
		rt:         usecase.NewRuntime(opts...),
	}
}

// Create は商品を登録する。
func (s *Service) Create(ctx context.Context, userID model.UserID, props model.ProductProps) (*model.Product, error) {
	props.Name = s.rt.Clean(props.Name)

	p, err := model.NewProduct(userID, props, s.rt.Clock())
	if err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, p); err != nil {
		return nil, model.ProductErrorFromRepository(err)
	}

	s.rt.Metrics.RecordProductCreated()
	s.rt.Publish(ctx, event.ProductCreated, userID, p.ID, map[string]any{
		"name":   p.Name,
		"status": string(p.Status),
	})
	return p, nil
}

// Get は商品を1件取得する。他ユーザーの商品はNOT_FOUNDとなる。
func (s *Service) Get(ctx context.Context, userID model.UserID, id string) (*model.Product, error) {
	return s.load(ctx, userID, id)
}

// List は商品一覧を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID model.UserID, params ListParams) ([]*model.Product, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, model.NewProductError(model.CodeInvalidStatus, nil)
	}
	products, err := s.products.List(ctx, userID, repository.ProductListOptions{
		Status: params.Status,
		Cursor: params.Cursor,
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, model.ProductErrorFromRepository(err)
	}
	return products, nil
}

// Update は商品全体を置き換える。
// finishedに遷移した場合は、紐づく買い物アイテムが無ければ自動で追加する（ベストエフォート）。
func (s *Service) Update(ctx context.Context, userID model.UserID, id string, props model.ProductProps) (*model.Product, error) {
	p, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	props.Name = s.rt.Clean(props.Name)
	finished, err := p.ApplyUpdate(props, s.rt.Clock())
	if err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, p); err != nil {
		return nil, model.ProductErrorFromRepository(err)
	}

	s.rt.Publish(ctx, event.ProductUpdated, userID, p.ID, map[string]any{"status": string(p.Status)})
	if finished {
		outcome := ""
		if p.Outcome != nil {
			outcome = string(*p.Outcome)
		}
		s.rt.Metrics.RecordProductFinished(outcome)
		s.rt.Publish(ctx, event.ProductFinished, userID, p.ID, map[string]any{"outcome": outcome})
		s.addToShoppingList(ctx, p)
	}
	return p, nil
}

// addToShoppingList は使い切った商品を買い物リストに追加する。
// 失敗しても商品の更新は成功として扱い、警告ログのみ残す。
func (s *Service) addToShoppingList(ctx context.Context, p *model.Product) {
	if s.items == nil {
		return
	}
	logger := s.rt.Logger.With(
		slog.String("user_id", p.UserID.String()),
		slog.String("product_id", p.ID),
	)

	existing, err := s.items.FindByProductID(ctx, p.UserID, p.ID)
	if err != nil {
		logger.WarnContext(ctx, "買い物リストの確認に失敗しました", slog.String("error", err.Error()))
		return
	}
	if existing != nil {
		return
	}

	productID := p.ID
	item, err := model.NewShoppingItem(p.UserID, p.Name, &productID, s.rt.Clock())
	if err != nil {
		logger.WarnContext(ctx, "買い物アイテムの生成に失敗しました", slog.String("error", err.Error()))
		return
	}
	if err := s.items.Save(ctx, item); err != nil {
		if kind, _ := model.RepositoryKindOf(err); kind == model.RepoErrDuplicated {
			// 並行リクエストで先に追加された
			return
		}
		logger.WarnContext(ctx, "買い物リストへの自動追加に失敗しました", slog.String("error", err.Error()))
		return
	}

	s.rt.Metrics.RecordShoppingItemAutoAdded()
	s.rt.Publish(ctx, event.ShoppingItemCreated, p.UserID, item.ID, map[string]any{
		"name":       item.Name,
		"product_id": p.ID,
	})
	logger.InfoContext(ctx, "使い切った商品を買い物リストに追加しました")
}

// Delete は商品を削除し、紐づく買い物アイテムを手動アイテムとして切り離す。
func (s *Service) Delete(ctx context.Context, userID model.UserID, id string) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, userID, id); err != nil {
		return model.ProductErrorFromRepository(err)
	}

	if s.items != nil {
		if err := s.items.UnlinkProduct(ctx, userID, id); err != nil {
			s.rt.Logger.WarnContext(ctx, "買い物アイテムの切り離しに失敗しました",
				slog.String("user_id", userID.String()),
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.rt.Publish(ctx, event.ProductDeleted, userID, id, nil)
	return nil
}

// EstimateExpiry は登録済み商品の期限を推定し、日付が得られた場合は保存する。
func (s *Service) EstimateExpiry(ctx context.Context, userID model.UserID, id string) (*model.Product, model.ExpiryEstimation, error) {
	p, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, model.ExpiryEstimation{}, err
	}

	est, err := s.estimate(ctx, p.Name, p.Status, p.Location)
	if err != nil {
		return nil, model.ExpiryEstimation{}, err
	}
	if est.Date == nil {
		return p, est, nil
	}

	if err := p.SetEstimatedExpiry(*est.Date, s.rt.Clock()); err != nil {
		return nil, model.ExpiryEstimation{}, err
	}
	if err := s.products.Save(ctx, p); err != nil {
		return nil, model.ExpiryEstimation{}, model.ProductErrorFromRepository(err)
	}
	s.rt.Publish(ctx, event.ProductUpdated, userID, p.ID, map[string]any{
		"estimated_expiry_date": est.Date.Format(time.DateOnly),
	})
	return p, est, nil
}

// EstimateExpiryDate は未登録の商品について期限を推定する。保存は行わない。
func (s *Service) EstimateExpiryDate(ctx context.Context, name string, status model.ProductStatus, location *model.ProductLocation) (model.ExpiryEstimation, error) {
	n, err := model.NormalizeName(s.rt.Clean(name))
	if err != nil {
		return model.ExpiryEstimation{}, model.NewProductError(model.ErrorCodeOf(err), err)
	}
	if status == "" {
		status = model.ProductStatusNew
	}
	if !status.IsValid() {
		return model.ExpiryEstimation{}, model.NewProductError(model.CodeInvalidStatus, nil)
	}
	if location != nil && !location.IsValid() {
		return model.ExpiryEstimation{}, model.NewProductError(model.CodeInvalidLocation, nil)
	}
	return s.estimate(ctx, n, status, location)
}

func (s *Service) estimate(ctx context.Context, name string, status model.ProductStatus, location *model.ProductLocation) (model.ExpiryEstimation, error) {
	if s.estimator == nil {
		return model.ExpiryEstimation{}, model.NewProductError(model.CodeEstimationFailed, nil)
	}
	start := time.Now()
	est, err := s.estimator.Estimate(ctx, name, status, location)
	s.rt.ObserveAI("estimate_expiry", start, err)
	if err != nil {
		s.rt.Logger.WarnContext(ctx, "期限の推定に失敗しました",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return model.ExpiryEstimation{}, model.NewProductError(model.CodeEstimationFailed, err)
	}
	return est, nil
}

// IdentifyByImage は画像から商品を識別する。
func (s *Service) IdentifyByImage(ctx context.Context, imageBase64 string) (*model.ProductIdentification, error) {
	if s.identifier == nil {
		return nil, model.NewProductError(model.CodeIdentificationFailed, nil)
	}
	start := time.Now()
	id, err := s.identifier.IdentifyByImage(ctx, imageBase64)
	s.rt.ObserveAI("identify_image", start, err)
	return s.identified(ctx, id, err)
}

// IdentifyByBarcode はバーコードから商品を識別する。
func (s *Service) IdentifyByBarcode(ctx context.Context, barcode string) (*model.ProductIdentification, error) {
	if s.identifier == nil {
		return nil, model.NewProductError(model.CodeIdentificationFailed, nil)
	}
	start := time.Now()
	id, err := s.identifier.IdentifyByBarcode(ctx, barcode)
	s.rt.ObserveAI("identify_barcode", start, err)
	return s.identified(ctx, id, err)
}

func (s *Service) identified(ctx context.Context, id *model.ProductIdentification, err error) (*model.ProductIdentification, error) {
	if err != nil {
		s.rt.Logger.WarnContext(ctx, "商品の識別に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewProductError(model.CodeIdentificationFailed, err)
	}
	if id == nil {
		return nil, model.NewProductError(model.CodeIdentificationFailed, nil)
	}
	name, nerr := model.NormalizeName(s.rt.Clean(id.Name))
	if nerr != nil {
		return nil, model.NewProductError(model.CodeIdentificationFailed, nerr)
	}
	id.Name = name
	if id.SuggestedQuantity != nil {
		q := s.rt.Clean(*id.SuggestedQuantity)
		if q == "" {
			id.SuggestedQuantity = nil
		} else {
			id.SuggestedQuantity = &q
		}
	}
	return id, nil
}

// ScanReceipt はレシート画像から品目を読み取る。
// サニタイズ後に名前が空になった品目は除外する。
func (s *Service) ScanReceipt(ctx context.Context, imageBase64 string) ([]model.ReceiptItem, error) {
	if s.scanner == nil {
		return nil, model.NewProductError(model.CodeScanFailed, nil)
	}
	start := time.Now()
	raw, err := s.scanner.Scan(ctx, imageBase64)
	s.rt.ObserveAI("scan_receipt", start, err)
	if err != nil {
		s.rt.Logger.WarnContext(ctx, "レシートの読み取りに失敗しました", slog.String("error", err.Error()))
		return nil, model.NewProductError(model.CodeScanFailed, err)
	}

	items := make([]model.ReceiptItem, 0, len(raw))
	for _, it := range raw {
		name, nerr := model.NormalizeName(s.rt.Clean(it.Name))
		if nerr != nil {
			continue
		}
		it.Name = name
		items = append(items, it)
	}
	return items, nil
}

// load は呼び出し元が所有する商品を取得する。
func (s *Service) load(ctx context.Context, userID model.UserID, id string) (*model.Product, error) {
	p, err := s.products.FindByID(ctx, userID, id)
	if err != nil {
		return nil, model.ProductErrorFromRepository(err)
	}
	if p == nil || p.UserID != userID {
		return nil, model.NewProductError(model.CodeNotFound, nil)
	}
	return p, nil
}
