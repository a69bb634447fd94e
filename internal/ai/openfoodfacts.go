package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// DefaultOpenFoodFactsURL はOpen Food Facts APIのベースURL。
const DefaultOpenFoodFactsURL = "https://world.openfoodfacts.org"

// maxOpenFoodFactsResponse はAPI応答として読み込む最大バイト数。
const maxOpenFoodFactsResponse = 2 << 20

// OpenFoodFactsClient はOpen Food Facts APIでバーコードを引くBarcodeLookup。
type OpenFoodFactsClient struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[*model.ProductIdentification]
}

// NewOpenFoodFactsClient はOpenFoodFactsClientを生成する。
// httpClientには外部向けの安全なクライアントを渡すこと。
func NewOpenFoodFactsClient(httpClient *http.Client, baseURL string) *OpenFoodFactsClient {
	if baseURL == "" {
		baseURL = DefaultOpenFoodFactsURL
	}
	return &OpenFoodFactsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		breaker:    NewBreaker[*model.ProductIdentification]("openfoodfacts", ErrNotIdentified),
	}
}

type offResponse struct {
	Status  int `json:"status"`
	Product *struct {
		ProductNameJA  string   `json:"product_name_ja"`
		ProductName    string   `json:"product_name"`
		Quantity       string   `json:"quantity"`
		CategoriesTags []string `json:"categories_tags"`
	} `json:"product"`
}

// Lookup はバーコード（8〜14桁の数字）から商品を識別する。
// 商品が登録されていない場合はErrNotIdentifiedを返す。
func (c *OpenFoodFactsClient) Lookup(ctx context.Context, barcode string) (*model.ProductIdentification, error) {
	barcode = strings.TrimSpace(barcode)
	if !isBarcode(barcode) {
		return nil, fmt.Errorf("不正なバーコードです: %w", ErrNotIdentified)
	}

	return c.breaker.Execute(func() (*model.ProductIdentification, error) {
		return c.lookup(ctx, barcode)
	})
}

func (c *OpenFoodFactsClient) lookup(ctx context.Context, barcode string) (*model.ProductIdentification, error) {
	url := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, barcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("バーコード照会に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotIdentified
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("バーコード照会が失敗しました: HTTP %d", resp.StatusCode)
	}

	var body offResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOpenFoodFactsResponse)).Decode(&body); err != nil {
		return nil, fmt.Errorf("バーコード照会結果の解析に失敗しました: %w", err)
	}
	if body.Status != 1 || body.Product == nil {
		return nil, ErrNotIdentified
	}

	name := strings.TrimSpace(body.Product.ProductNameJA)
	if name == "" {
		name = strings.TrimSpace(body.Product.ProductName)
	}
	if name == "" {
		return nil, ErrNotIdentified
	}

	result := &model.ProductIdentification{
		Name:              name,
		Confidence:        model.ConfidenceHigh,
		Method:            model.IdentificationBarcode,
		SuggestedLocation: inferLocation(body.Product.CategoriesTags),
	}
	if q := strings.TrimSpace(body.Product.Quantity); q != "" {
		result.SuggestedQuantity = &q
	}
	return result, nil
}

func isBarcode(s string) bool {
	if len(s) < 8 || len(s) > 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// inferLocation はカテゴリタグから保管場所を推測する。判断できない場合はpantry。
func inferLocation(categories []string) *model.ProductLocation {
	joined := strings.ToLower(strings.Join(categories, ","))

	loc := model.ProductLocationPantry
	switch {
	case strings.Contains(joined, "frozen"):
		loc = model.ProductLocationFreezer
	case containsAny(joined, "dairy", "fresh", "meat", "fish", "seafood", "eggs", "tofu"):
		loc = model.ProductLocationFridge
	}
	return &loc
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var _ BarcodeLookup = (*OpenFoodFactsClient)(nil)
