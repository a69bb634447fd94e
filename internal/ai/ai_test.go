package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker/v2"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// mockGenerator はGeneratorのモック。
type mockGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	lastParts []genai.Part
}

func (m *mockGenerator) Generate(ctx context.Context, system string, parts ...genai.Part) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastParts = parts
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", ErrEmptyResponse
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedEstimator(gen Generator) *ExpiryEstimator {
	e := NewExpiryEstimator(gen)
	e.now = func() time.Time { return testNow }
	return e
}

// --- 期限推定 ---

func TestExpiryEstimator_ParsesDays(t *testing.T) {
	gen := &mockGenerator{responses: []string{"推定結果: {\"daysUntilExpiry\":3,\"confidence\":\"high\"}"}}
	fridge := model.ProductLocationFridge

	got, err := fixedEstimator(gen).Estimate(context.Background(), "牛乳", model.ProductStatusOpened, &fridge)
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if got.Confidence != model.ConfidenceHigh {
		t.Errorf("Confidence = %q, want %q", got.Confidence, model.ConfidenceHigh)
	}
	want := testNow.AddDate(0, 0, 3)
	if got.Date == nil || !got.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", got.Date, want)
	}
}

// 推定器はリクエスト間で結果を保持せず、同じ入力でも毎回生成器に問い合わせる
func TestExpiryEstimator_KeepsNoStateBetweenCalls(t *testing.T) {
	gen := &mockGenerator{responses: []string{
		`{"daysUntilExpiry":180,"confidence":"high"}`,
		`{"daysUntilExpiry":null,"confidence":"none"}`,
	}}
	e := fixedEstimator(gen)
	ctx := context.Background()

	first, err := e.Estimate(ctx, "Rice", model.ProductStatusNew, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Estimate(ctx, "Rice", model.ProductStatusNew, nil)
	if err != nil {
		t.Fatal(err)
	}

	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
	if first.Confidence != model.ConfidenceHigh || second.Confidence != model.ConfidenceNone {
		t.Errorf("confidences = %q, %q; second call must use the new answer", first.Confidence, second.Confidence)
	}
}

func TestExpiryEstimator_RecoversAfterGeneratorError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("quota exceeded")}
	e := fixedEstimator(gen)

	if _, err := e.Estimate(context.Background(), "卵", model.ProductStatusNew, nil); err == nil {
		t.Fatal("expected error")
	}

	gen.err = nil
	gen.responses = []string{`{"daysUntilExpiry":14,"confidence":"medium"}`}
	got, err := e.Estimate(context.Background(), "卵", model.ProductStatusNew, nil)
	if err != nil {
		t.Fatalf("second Estimate returned error: %v", err)
	}
	if got.Confidence != model.ConfidenceMedium {
		t.Errorf("Confidence = %q, want %q", got.Confidence, model.ConfidenceMedium)
	}
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantDays       *int
		wantConfidence model.Confidence
	}{
		{"コードブロック付き", "```json\n{\"daysUntilExpiry\":5,\"confidence\":\"medium\"}\n```", intPtr(5), model.ConfidenceMedium},
		{"推定不可", `{"daysUntilExpiry":null,"confidence":"none"}`, nil, model.ConfidenceNone},
		{"JSONなし", "わかりません", nil, model.ConfidenceNone},
		{"壊れたJSON", `{"daysUntilExpiry":}`, nil, model.ConfidenceNone},
		{"未知のconfidence", `{"daysUntilExpiry":2,"confidence":"certain"}`, nil, model.ConfidenceNone},
		{"負の日数は0に丸める", `{"daysUntilExpiry":-3,"confidence":"low"}`, intPtr(0), model.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseExpiry(tt.text)
			if got.confidence != tt.wantConfidence {
				t.Errorf("confidence = %q, want %q", got.confidence, tt.wantConfidence)
			}
			switch {
			case tt.wantDays == nil && got.days != nil:
				t.Errorf("days = %d, want nil", *got.days)
			case tt.wantDays != nil && (got.days == nil || *got.days != *tt.wantDays):
				t.Errorf("days = %v, want %d", got.days, *tt.wantDays)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

// --- 画像デコード ---

func TestDecodeImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake-png"))

	format, data, err := decodeImage("data:image/png;base64," + payload[:4] + "\n" + payload[4:])
	if err != nil {
		t.Fatalf("decodeImage returned error: %v", err)
	}
	if format != "png" || string(data) != "fake-png" {
		t.Errorf("decodeImage = %q, %q", format, data)
	}

	format, _, err = decodeImage(payload)
	if err != nil || format != "jpeg" {
		t.Errorf("raw base64 = %q, %v, want jpeg", format, err)
	}

	for _, bad := range []string{"", "data:image/png;base64", "!!!not base64!!!"} {
		if _, _, err := decodeImage(bad); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("decodeImage(%q) err = %v, want ErrInvalidImage", bad, err)
		}
	}
}

// --- 画像識別 ---

func TestIdentifier_IdentifyByImage(t *testing.T) {
	gen := &mockGenerator{responses: []string{
		`{"name":" プレーンヨーグルト ","confidence":"high","suggestedLocation":"fridge","suggestedQuantity":"400 g"}`,
	}}
	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	got, err := NewIdentifier(gen, nil).IdentifyByImage(context.Background(), image)
	if err != nil {
		t.Fatalf("IdentifyByImage returned error: %v", err)
	}
	if got.Name != "プレーンヨーグルト" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Method != model.IdentificationVisual || got.Confidence != model.ConfidenceHigh {
		t.Errorf("Method/Confidence = %q/%q", got.Method, got.Confidence)
	}
	if got.SuggestedLocation == nil || *got.SuggestedLocation != model.ProductLocationFridge {
		t.Errorf("SuggestedLocation = %v", got.SuggestedLocation)
	}
	if got.SuggestedQuantity == nil || *got.SuggestedQuantity != "400 g" {
		t.Errorf("SuggestedQuantity = %v", got.SuggestedQuantity)
	}
	if _, ok := gen.lastParts[0].(genai.Blob); !ok {
		t.Errorf("first part = %T, want genai.Blob", gen.lastParts[0])
	}
}

func TestParseIdentification_Failures(t *testing.T) {
	for _, text := range []string{
		`{"name":"","confidence":"low"}`,
		"識別できません",
		`{"name":`,
	} {
		if _, err := parseIdentification(text); !errors.Is(err, ErrNotIdentified) {
			t.Errorf("parseIdentification(%q) err = %v, want ErrNotIdentified", text, err)
		}
	}

	// 未知の保管場所は無視し、confidenceはlowに丸める
	got, err := parseIdentification(`{"name":"米","confidence":"maybe","suggestedLocation":"garage"}`)
	if err != nil {
		t.Fatal(err)
	}
	if got.SuggestedLocation != nil || got.Confidence != model.ConfidenceLow {
		t.Errorf("got = %+v", got)
	}
}

func TestIdentifier_BarcodeWithoutLookupFails(t *testing.T) {
	_, err := NewIdentifier(&mockGenerator{}, nil).IdentifyByBarcode(context.Background(), "4901234567894")
	if !errors.Is(err, ErrNotIdentified) {
		t.Errorf("err = %v, want ErrNotIdentified", err)
	}
}

// --- Open Food Facts ---

func TestOpenFoodFactsClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/product/4901234567894.json":
			w.Write([]byte(`{"status":1,"product":{"product_name_ja":"牛乳","product_name":"Milk","quantity":"1000ml","categories_tags":["en:dairies","en:milks"]}}`))
		case "/api/v2/product/4900000000000.json":
			w.Write([]byte(`{"status":0}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOpenFoodFactsClient(srv.Client(), srv.URL+"/")

	got, err := c.Lookup(context.Background(), "4901234567894")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if got.Name != "牛乳" || got.Method != model.IdentificationBarcode {
		t.Errorf("got = %+v", got)
	}
	if got.SuggestedLocation == nil || *got.SuggestedLocation != model.ProductLocationFridge {
		t.Errorf("SuggestedLocation = %v, want fridge", got.SuggestedLocation)
	}
	if got.SuggestedQuantity == nil || *got.SuggestedQuantity != "1000ml" {
		t.Errorf("SuggestedQuantity = %v", got.SuggestedQuantity)
	}

	for _, code := range []string{"4900000000000", "49999999", "abc", "123"} {
		if _, err := c.Lookup(context.Background(), code); !errors.Is(err, ErrNotIdentified) {
			t.Errorf("Lookup(%q) err = %v, want ErrNotIdentified", code, err)
		}
	}
}

// 未登録バーコードの連続はブレーカーを開かないことを検証
func TestOpenFoodFactsClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewOpenFoodFactsClient(srv.Client(), srv.URL)
	for i := 0; i < 5; i++ {
		if _, err := c.Lookup(context.Background(), "4901234567894"); !errors.Is(err, ErrNotIdentified) {
			t.Fatalf("attempt %d err = %v, want ErrNotIdentified", i, err)
		}
	}
}

func TestInferLocation(t *testing.T) {
	tests := []struct {
		tags []string
		want model.ProductLocation
	}{
		{[]string{"en:frozen-foods"}, model.ProductLocationFreezer},
		{[]string{"en:fresh-meats"}, model.ProductLocationFridge},
		{[]string{"en:cereals"}, model.ProductLocationPantry},
		{nil, model.ProductLocationPantry},
	}
	for _, tt := range tests {
		if got := inferLocation(tt.tags); *got != tt.want {
			t.Errorf("inferLocation(%v) = %q, want %q", tt.tags, *got, tt.want)
		}
	}
}

// --- レシート ---

func TestReceiptScanner_Scan(t *testing.T) {
	gen := &mockGenerator{responses: []string{
		"```json\n[{\"name\":\"牛乳\",\"confidence\":\"high\"},{\"name\":\" \",\"confidence\":\"high\"},{\"name\":\"りんご\",\"confidence\":\"low\"},{\"name\":\"食パン\"}]\n```",
	}}
	image := base64.StdEncoding.EncodeToString([]byte("receipt"))

	items, err := NewReceiptScanner(gen).Scan(context.Background(), image)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3 (blank names skipped)", len(items))
	}
	if items[1].Name != "りんご" || items[1].Confidence != model.ConfidenceLow {
		t.Errorf("items[1] = %+v", items[1])
	}
	if items[2].Confidence != model.ConfidenceHigh {
		t.Errorf("missing confidence should default to high, got %q", items[2].Confidence)
	}
}

func TestParseReceipt_Malformed(t *testing.T) {
	if _, err := parseReceipt("読めません"); !errors.Is(err, ErrUnreadableReceipt) {
		t.Errorf("err = %v, want ErrUnreadableReceipt", err)
	}
}

// --- レシピ ---

func TestRecipeGenerator_Generate(t *testing.T) {
	exp := testNow
	tomato := &model.Product{ID: "p-1", Name: "トマト", Status: model.ProductStatusNew, ExpiryDate: &exp, CreatedAt: testNow}
	egg := &model.Product{ID: "p-2", Name: "卵", Status: model.ProductStatusNew, CreatedAt: testNow}

	gen := &mockGenerator{responses: []string{`[
	  {"title":"トマトの卵炒め","description":"今日までのトマトを使います","estimatedTime":"Quick",
	   "ingredients":[
	     {"productId":"p-1","productName":"トマト","quantity":"2個","isUrgent":true},
	     {"productId":"p-2","productName":"","quantity":"2個","isUrgent":false},
	     {"productId":"made-up","productName":"塩","isUrgent":false}
	   ],
	   "steps":["切る"," ","炒める"]},
	  {"title":"二品目","ingredients":[{"productId":"p-2","productName":"卵"}],"steps":[]}
	]`}}

	props, err := NewRecipeGenerator(gen).Generate(context.Background(), []*model.Product{tomato, egg}, 1, testNow)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(props) != 1 {
		t.Fatalf("len = %d, want 1 (limit)", len(props))
	}

	r := props[0]
	if r.EstimatedTime != model.EstimatedTimeQuick {
		t.Errorf("EstimatedTime = %q, want quick", r.EstimatedTime)
	}
	if len(r.Ingredients) != 3 {
		t.Fatalf("ingredients = %d, want 3", len(r.Ingredients))
	}
	if r.Ingredients[1].Name != "卵" {
		t.Errorf("blank name should fall back to product name, got %q", r.Ingredients[1].Name)
	}
	if r.Ingredients[2].ProductID != nil {
		t.Error("unknown product id must be dropped")
	}
	if len(r.UrgentIngredients) != 1 || r.UrgentIngredients[0] != "トマト" {
		t.Errorf("UrgentIngredients = %v", r.UrgentIngredients)
	}
	if len(r.Steps) != 2 {
		t.Errorf("Steps = %v, want blank steps removed", r.Steps)
	}

	prompt := string(gen.lastParts[0].(genai.Text))
	if !strings.Contains(prompt, "[id:p-1] (use_today, あと0日)") {
		t.Errorf("prompt does not describe urgency: %s", prompt)
	}
	if !strings.Contains(prompt, "期限なし") {
		t.Error("prompt should mark products without expiry")
	}
}

func TestParseRecipes_Malformed(t *testing.T) {
	if _, err := parseRecipes(`{"title":"not an array"}`, nil); !errors.Is(err, ErrMalformedRecipes) {
		t.Errorf("err = %v, want ErrMalformedRecipes", err)
	}
}

// --- サーキットブレーカー ---

func TestWithCircuitBreaker_OpensAfterFailures(t *testing.T) {
	inner := &mockGenerator{err: errors.New("upstream 503")}
	gen := WithCircuitBreaker(inner, "test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := gen.Generate(ctx, ""); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}

	_, err := gen.Generate(ctx, "")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want gobreaker.ErrOpenState", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3 (open breaker short-circuits)", inner.calls)
	}
}

func TestResponseText_Empty(t *testing.T) {
	if _, err := responseText(nil); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("a"), genai.Text("b")}},
	}}}
	if got, err := responseText(resp); err != nil || got != "ab" {
		t.Errorf("responseText = %q, %v, want %q", got, err, "ab")
	}
}
