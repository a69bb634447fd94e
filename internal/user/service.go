// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"log/slog"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// ShoppingItemDeleter は買い物アイテムの一括削除インターフェース。
type ShoppingItemDeleter interface {
	DeleteByUserID(ctx context.Context, userID model.UserID) error
}

// ProductDeleter は商品の一括削除インターフェース。
type ProductDeleter interface {
	DeleteByUserID(ctx context.Context, userID model.UserID) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	itemDeleter    ShoppingItemDeleter
	productDeleter ProductDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(itemDeleter ShoppingItemDeleter, productDeleter ProductDeleter) *Service {
	return &Service{
		itemDeleter:    itemDeleter,
		productDeleter: productDeleter,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: shopping_items → products
// アカウント自体は外部の認証基盤が管理するため、ここではデータのみ削除する。
func (s *Service) Withdraw(ctx context.Context, userID model.UserID) error {
	if userID.IsZero() {
		return model.NewProductError(model.CodeUserIDEmpty, nil)
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID.String()),
	)

	// 1. 買い物アイテムを削除（商品への参照を先に消す）
	if err := s.itemDeleter.DeleteByUserID(ctx, userID); err != nil {
		return model.ShoppingItemErrorFromRepository(err)
	}

	// 2. 商品を削除
	if err := s.productDeleter.DeleteByUserID(ctx, userID); err != nil {
		return model.ProductErrorFromRepository(err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID.String()),
	)

	return nil
}
