package model

import (
	"errors"
	"testing"
	"time"
)

func shoppingCode(t *testing.T, err error) ErrorCode {
	t.Helper()
	var se *ShoppingItemError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ShoppingItemError, got %T (%v)", err, err)
	}
	return se.Code
}

// TestNewShoppingItem_Manual は商品参照なしのアイテムが手動アイテムになることを検証する。
func TestNewShoppingItem_Manual(t *testing.T) {
	item, err := NewShoppingItem(MustNewUserID("user-1"), " Olive oil ", nil, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Name != "Olive oil" {
		t.Errorf("Name = %q, want %q", item.Name, "Olive oil")
	}
	if !item.IsManual() {
		t.Error("IsManual() = false, want true")
	}
	if item.IsBought {
		t.Error("IsBought = true, want false")
	}
	if !item.CreatedAt.Equal(item.UpdatedAt) {
		t.Error("CreatedAt and UpdatedAt should be equal")
	}
}

// TestNewShoppingItem_Derived は商品参照ありのアイテムを検証する。
func TestNewShoppingItem_Derived(t *testing.T) {
	item, err := NewShoppingItem(MustNewUserID("user-1"), "Milk", strPtr("product-1"), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.IsManual() {
		t.Error("IsManual() = true, want false")
	}
	if *item.ProductID != "product-1" {
		t.Errorf("ProductID = %q, want %q", *item.ProductID, "product-1")
	}
}

// TestNewShoppingItem_ValidationCodes は検証順序とコードを検証する。
func TestNewShoppingItem_ValidationCodes(t *testing.T) {
	tests := []struct {
		name      string
		itemName  string
		productID *string
		want      ErrorCode
	}{
		{"blank name", "  ", nil, CodeNameEmpty},
		{"blank name and product id", "", strPtr(" "), CodeNameEmpty},
		{"blank product id", "Milk", strPtr(" "), CodeProductIDEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewShoppingItem(MustNewUserID("user-1"), tt.itemName, tt.productID, testNow)
			if got := shoppingCode(t, err); got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestShoppingItem_SetBought は購入済みフラグの冪等性を検証する。
func TestShoppingItem_SetBought(t *testing.T) {
	item, _ := NewShoppingItem(MustNewUserID("user-1"), "Rice", nil, testNow)
	later := testNow.Add(time.Hour)

	if !item.SetBought(true, later) {
		t.Error("first SetBought(true) should report change")
	}
	if item.BoughtAt == nil || !item.BoughtAt.Equal(later) {
		t.Errorf("BoughtAt = %v, want %v", item.BoughtAt, later)
	}
	if item.SetBought(true, later.Add(time.Hour)) {
		t.Error("second SetBought(true) should be a no-op")
	}
	if !item.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", item.UpdatedAt, later)
	}
	if !item.SetBought(false, later) || item.BoughtAt != nil {
		t.Error("SetBought(false) should clear BoughtAt")
	}
}

// TestShoppingItem_RenameAndUnlink は名前変更と参照の切り離しを検証する。
func TestShoppingItem_RenameAndUnlink(t *testing.T) {
	item, _ := NewShoppingItem(MustNewUserID("user-1"), "Milk", strPtr("p-1"), testNow)

	if err := item.Rename("", testNow); shoppingCode(t, err) != CodeNameEmpty {
		t.Errorf("err = %v", err)
	}
	if err := item.Rename("Whole milk", testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item.Unlink(testNow)
	if !item.IsManual() {
		t.Error("item should be manual after Unlink")
	}
}

// TestNewSuggestion は提案の必須項目を検証する。
func TestNewSuggestion(t *testing.T) {
	_, err := NewSuggestion(SuggestionProps{Title: " ", Ingredients: []Ingredient{{Name: "egg"}}}, testNow)
	var ge *SuggestionError
	if !errors.As(err, &ge) || ge.Code != CodeTitleEmpty {
		t.Errorf("err = %v, want TITLE_EMPTY", err)
	}

	_, err = NewSuggestion(SuggestionProps{Title: "Omelette"}, testNow)
	if !errors.As(err, &ge) || ge.Code != CodeNoIngredients {
		t.Errorf("err = %v, want NO_INGREDIENTS", err)
	}

	s, err := NewSuggestion(SuggestionProps{Title: "Omelette", Ingredients: []Ingredient{{Name: "egg"}}}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.EstimatedTime != EstimatedTimeMedium {
		t.Errorf("EstimatedTime = %q, want %q", s.EstimatedTime, EstimatedTimeMedium)
	}
}
