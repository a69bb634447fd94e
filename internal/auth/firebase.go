package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/kitchenstock/internal/model"
)

const (
	// DefaultFirebaseCertsURL はFirebase IDトークンの署名証明書の公開URL。
	DefaultFirebaseCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

	firebaseIssuerPrefix = "https://securetoken.google.com/"
	defaultCertsTTL      = time.Hour
	minRefetchInterval   = time.Minute
	maxCertsResponseSize = 1 << 20
)

// FirebaseConfig はFirebaseVerifierの設定。
type FirebaseConfig struct {
	ProjectID string

	// テスト用にオーバーライド可能
	CertsURL   string
	HTTPClient *http.Client
}

// FirebaseVerifier はFirebase Authentication のIDトークン（RS256）を検証する。
// 署名証明書はCache-Controlのmax-ageに従ってキャッシュする。
type FirebaseVerifier struct {
	projectID  string
	certsURL   string
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	expires   time.Time
	fetchedAt time.Time
}

// NewFirebaseVerifier はFirebaseVerifierを生成する。
func NewFirebaseVerifier(cfg FirebaseConfig) *FirebaseVerifier {
	if cfg.CertsURL == "" {
		cfg.CertsURL = DefaultFirebaseCertsURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &FirebaseVerifier{
		projectID:  cfg.ProjectID,
		certsURL:   cfg.CertsURL,
		httpClient: cfg.HTTPClient,
		now:        time.Now,
	}
}

// Verify はIDトークンを検証してUserIDを返す。
// issは https://securetoken.google.com/<project>、audはプロジェクトIDでなければならない。
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (model.UserID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("kidがありません")
		}
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(firebaseIssuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return model.UserID{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return subjectToUserID(claims)
}

// key はkidに対応する公開鍵を返す。
// キャッシュに無いkidの場合は期限内でも再取得する（鍵のローテーション対応）。
// ただし再取得はminRefetchIntervalに1回までとする。
func (v *FirebaseVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if v.keys != nil && now.Before(v.expires) {
		if k, ok := v.keys[kid]; ok {
			return k, nil
		}
		if now.Sub(v.fetchedAt) < minRefetchInterval {
			return nil, fmt.Errorf("不明なkidです: %s", kid)
		}
	}

	keys, ttl, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	v.keys = keys
	v.fetchedAt = now
	v.expires = now.Add(ttl)

	k, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("不明なkidです: %s", kid)
	}
	return k, nil
}

// fetchKeys は証明書一覧を取得して公開鍵に変換する。
func (v *FirebaseVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("証明書リクエストの作成に失敗しました: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("証明書の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("証明書の取得に失敗しました: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCertsResponseSize)).Decode(&certs); err != nil {
		return nil, 0, fmt.Errorf("証明書のデコードに失敗しました: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemCert := range certs {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemCert))
		if err != nil {
			slog.Warn("証明書の解析に失敗しました",
				slog.String("kid", kid),
				slog.String("error", err.Error()),
			)
			continue
		}
		keys[kid] = k
	}
	if len(keys) == 0 {
		return nil, 0, fmt.Errorf("有効な証明書がありません")
	}

	return keys, maxAge(resp.Header.Get("Cache-Control")), nil
}

// maxAge はCache-Controlヘッダのmax-ageを返す。無い場合は既定値。
func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			break
		}
		return time.Duration(secs) * time.Second
	}
	return defaultCertsTTL
}
