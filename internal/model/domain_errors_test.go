package model

import (
	"errors"
	"fmt"
	"testing"
)

// TestErrorFromRepository_Mapping は全エンティティのリポジトリエラー変換が同じ全域写像であることを検証する。
func TestErrorFromRepository_Mapping(t *testing.T) {
	cause := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"not found", NewRepositoryError(RepoErrNotFound, "product.delete", nil), CodeNotFound},
		{"duplicated", NewRepositoryError(RepoErrDuplicated, "shopping_item.save", cause), CodeDuplicate},
		{"persistence", NewRepositoryError(RepoErrPersistence, "product.save", cause), CodeRepository},
		{"database", NewRepositoryError(RepoErrDatabase, "product.list", cause), CodeRepository},
		{"wrapped", fmt.Errorf("outer: %w", NewRepositoryError(RepoErrNotFound, "x", nil)), CodeNotFound},
		{"plain error", cause, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProductErrorFromRepository(tt.err).Code; got != tt.want {
				t.Errorf("product code = %q, want %q", got, tt.want)
			}
			if got := ShoppingItemErrorFromRepository(tt.err).Code; got != tt.want {
				t.Errorf("shopping item code = %q, want %q", got, tt.want)
			}
			if got := SuggestionErrorFromRepository(tt.err).Code; got != tt.want {
				t.Errorf("suggestion code = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestErrorFromRepository_Nil はnilが変換されないことを検証する。
func TestErrorFromRepository_Nil(t *testing.T) {
	if ProductErrorFromRepository(nil) != nil {
		t.Error("ProductErrorFromRepository(nil) should be nil")
	}
	if ShoppingItemErrorFromRepository(nil) != nil {
		t.Error("ShoppingItemErrorFromRepository(nil) should be nil")
	}
	if SuggestionErrorFromRepository(nil) != nil {
		t.Error("SuggestionErrorFromRepository(nil) should be nil")
	}
}

// TestRepositoryError_Unwrap は元のストレージエラーがチェーンに残ることを検証する。
func TestRepositoryError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := ProductErrorFromRepository(NewRepositoryError(RepoErrDatabase, "product.save", cause))
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if kind, ok := RepositoryKindOf(err); !ok || kind != RepoErrDatabase {
		t.Errorf("RepositoryKindOf = %q, %v", kind, ok)
	}
}

// TestErrorCodeOf はエラーチェーンからコードを取り出せることを検証する。
func TestErrorCodeOf(t *testing.T) {
	if got := ErrorCodeOf(fmt.Errorf("wrap: %w", NewShoppingItemError(CodeProductNotFound, nil))); got != CodeProductNotFound {
		t.Errorf("ErrorCodeOf = %q, want %q", got, CodeProductNotFound)
	}
	if got := ErrorCodeOf(errors.New("x")); got != CodeUnknown {
		t.Errorf("ErrorCodeOf = %q, want %q", got, CodeUnknown)
	}
}

// TestAPIErrorFromDomain は検証エラーのカテゴリがvalidationに統一されることを検証する。
func TestAPIErrorFromDomain(t *testing.T) {
	apiErr, ok := APIErrorFromDomain(NewProductError(CodeNameEmpty, nil))
	if !ok {
		t.Fatal("expected ok")
	}
	if apiErr.Code != "NAME_EMPTY" || apiErr.Category != "validation" {
		t.Errorf("apiErr = %+v", apiErr)
	}

	apiErr, ok = APIErrorFromDomain(NewShoppingItemError(CodeNotFound, nil))
	if !ok || apiErr.Category != "shopping" {
		t.Errorf("apiErr = %+v, ok = %v", apiErr, ok)
	}

	if _, ok := APIErrorFromDomain(errors.New("plain")); ok {
		t.Error("plain error should not be converted")
	}
}
