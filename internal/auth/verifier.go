// Package auth はBearerトークンを検証し、呼び出し元のUserIDを特定する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// ErrInvalidToken はトークンが不正・期限切れ・検証不能な場合のエラー。
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier はトークンを検証してUserIDを返すインターフェース。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (model.UserID, error)
}

// HMACVerifier は共有鍵（HS256）で署名されたトークンを検証する。
// 開発環境・テスト用で、本番ではFirebaseVerifierを使う。
type HMACVerifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewHMACVerifier はHMACVerifierを生成する。
func NewHMACVerifier(secret, issuer, audience string) *HMACVerifier {
	return &HMACVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// Issue はsubjectをsubに持つトークンを発行する。
func (v *HMACVerifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証してUserIDを返す。
func (v *HMACVerifier) Verify(_ context.Context, token string) (model.UserID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return model.UserID{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return subjectToUserID(claims)
}

// subjectToUserID はsubクレームからUserIDを生成する。
func subjectToUserID(claims *jwt.RegisteredClaims) (model.UserID, error) {
	id, err := model.NewUserID(claims.Subject)
	if err != nil {
		return model.UserID{}, fmt.Errorf("%w: subjectがありません", ErrInvalidToken)
	}
	return id, nil
}

var (
	_ TokenVerifier = (*HMACVerifier)(nil)
	_ TokenVerifier = (*FirebaseVerifier)(nil)
)
