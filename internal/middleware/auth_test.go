package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/kitchenstock/internal/model"
)

type mockVerifier struct {
	userID model.UserID
	err    error
	tokens []string
}

func (m *mockVerifier) Verify(_ context.Context, token string) (model.UserID, error) {
	m.tokens = append(m.tokens, token)
	if m.err != nil {
		return model.UserID{}, m.err
	}
	return m.userID, nil
}

func TestAuthMiddleware_InjectsUserID(t *testing.T) {
	verifier := &mockVerifier{userID: model.MustNewUserID("uid-42")}

	var got model.UserID
	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Fatalf("UserIDFromContext: %v", err)
		}
		got = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer  id-token ")
	resp := serve(handler, req)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got.String() != "uid-42" {
		t.Errorf("user id = %q, want uid-42", got.String())
	}
	if len(verifier.tokens) != 1 || verifier.tokens[0] != "id-token" {
		t.Errorf("verified tokens = %v", verifier.tokens)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		verifier *mockVerifier
	}{
		{"ヘッダなし", "", &mockVerifier{}},
		{"Basic認証", "Basic dXNlcjpwYXNz", &mockVerifier{}},
		{"トークンなし", "Bearer ", &mockVerifier{}},
		{"検証失敗", "Bearer bad", &mockVerifier{err: errors.New("invalid token")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(tt.verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := serve(handler, req)

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v, want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); !errors.Is(err, errNoUserID) {
		t.Errorf("err = %v, want errNoUserID", err)
	}
}
