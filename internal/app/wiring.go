package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/kitchenstock/internal/ai"
	"github.com/hitoshi/kitchenstock/internal/auth"
	"github.com/hitoshi/kitchenstock/internal/config"
	"github.com/hitoshi/kitchenstock/internal/database"
	"github.com/hitoshi/kitchenstock/internal/event"
	"github.com/hitoshi/kitchenstock/internal/handler"
	"github.com/hitoshi/kitchenstock/internal/metrics"
	"github.com/hitoshi/kitchenstock/internal/middleware"
	"github.com/hitoshi/kitchenstock/internal/product"
	"github.com/hitoshi/kitchenstock/internal/repository"
	"github.com/hitoshi/kitchenstock/internal/security"
	"github.com/hitoshi/kitchenstock/internal/shopping"
	"github.com/hitoshi/kitchenstock/internal/suggestion"
	"github.com/hitoshi/kitchenstock/internal/usecase"
	"github.com/hitoshi/kitchenstock/internal/user"
	"github.com/hitoshi/kitchenstock/internal/worker/cleanup"
)

// hmacIssuer はHMACモードで発行・検証するトークンのiss/aud。
const hmacIssuer = "kitchenstock"

// storage はストレージ種別ごとのリポジトリ群。
type storage struct {
	products repository.ProductRepository
	items    repository.ShoppingItemRepository
	purger   cleanup.Purger
	// health はインメモリの場合nil。
	health handler.HealthChecker
	close  func() error
}

// openStorage は設定に応じてPostgreSQLまたはインメモリのストレージを開く。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.UsesMemoryStorage() {
		store := repository.NewMemoryStore()
		slog.Warn("インメモリストレージで起動します。再起動するとデータは失われます")
		return &storage{
			products: store.Products(),
			items:    store.ShoppingItems(),
			purger:   store,
			close:    func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	items := repository.NewPostgresShoppingItemRepo(db)
	return &storage{
		products: repository.NewPostgresProductRepo(db),
		items:    items,
		purger:   items,
		health:   db,
		close:    db.Close,
	}, nil
}

// aiComponents はAI連携の各コンポーネント。
// GEMINI_API_KEYが未設定の場合、Gemini依存の値はnilのままとなる。
type aiComponents struct {
	estimator  product.ExpiryEstimator
	identifier product.Identifier
	scanner    product.ReceiptScanner
	recipes    suggestion.RecipeGenerator
	close      func() error
}

// newAIComponents はGeminiクライアントとOpen Food Factsクライアントを構築する。
// Geminiの呼び出しはサーキットブレーカー経由で行う。
func newAIComponents(ctx context.Context, cfg *config.Config) (*aiComponents, error) {
	c := &aiComponents{close: func() error { return nil }}

	if err := security.ValidateEndpoint(cfg.OpenFoodFactsBaseURL); err != nil {
		return nil, fmt.Errorf("OPENFOODFACTS_BASE_URLが不正です: %w", err)
	}
	barcode := ai.NewOpenFoodFactsClient(security.NewOutboundClient(cfg.AITimeout), cfg.OpenFoodFactsBaseURL)

	if !cfg.AIEnabled() {
		slog.Warn("GEMINI_API_KEYが未設定のため、AI機能は無効です")
		c.identifier = ai.NewIdentifier(nil, barcode)
		return c, nil
	}

	client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AITimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	gen := ai.WithCircuitBreaker(client, "gemini")

	c.estimator = ai.NewExpiryEstimator(gen)
	c.identifier = ai.NewIdentifier(gen, barcode)
	c.scanner = ai.NewReceiptScanner(gen)
	c.recipes = ai.NewRecipeGenerator(gen)
	c.close = client.Close
	slog.Info("AI機能を有効化しました", slog.String("model", cfg.GeminiModel))
	return c, nil
}

// publisher はイベント配信先とその解放処理。
type publisher struct {
	event.Publisher
	close func() error
}

// newPublisher はKAFKA_BROKERSが設定されていればKafkaへ、なければログへ配信する。
func newPublisher(cfg *config.Config) publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return publisher{Publisher: event.NewLogPublisher(slog.Default()), close: func() error { return nil }}
	}
	kp := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 5*time.Second)
	slog.Info("Kafkaへのイベント配信を有効化しました",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("topic", cfg.KafkaTopic),
	)
	return publisher{Publisher: kp, close: kp.Close}
}

// newVerifier は認証方式に応じたトークン検証器を生成する。
func newVerifier(cfg *config.Config) middleware.TokenVerifier {
	if cfg.AuthMode == config.AuthModeHMAC {
		slog.Warn("HMAC認証で起動します。本番環境では使用しないでください")
		return auth.NewHMACVerifier(cfg.AuthHMACSecret, hmacIssuer, hmacIssuer)
	}
	return auth.NewFirebaseVerifier(auth.FirebaseConfig{
		ProjectID:  cfg.FirebaseProjectID,
		HTTPClient: security.NewOutboundClient(10 * time.Second),
	})
}

// server はserveモードで起動する一式。
type server struct {
	handler http.Handler
	cleanup *cleanup.CleanupJob
	closers []func() error
}

// Close は確保したリソースを逆順に解放する。
func (s *server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
func buildServer(ctx context.Context, cfg *config.Config) (*server, error) {
	srv := &server{}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, store.close)

	aic, err := newAIComponents(ctx, cfg)
	if err != nil {
		srv.Close()
		return nil, err
	}
	srv.closers = append(srv.closers, aic.close)

	pub := newPublisher(cfg)
	srv.closers = append(srv.closers, pub.close)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	opts := []usecase.Option{
		usecase.WithLogger(slog.Default()),
		usecase.WithEventPublisher(pub),
		usecase.WithMetrics(collector),
		usecase.WithSanitizer(security.NewTextSanitizer()),
	}

	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAI))
	srv.closers = append(srv.closers, func() error { limiter.Stop(); return nil })

	deps := &handler.RouterDeps{
		Verifier:          newVerifier(cfg),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Logger:            slog.Default(),
		StatusRecorder:    collector,
		MetricsHandler:    metrics.Handler(reg),

		ProductService:    product.NewService(store.products, store.items, aic.estimator, aic.identifier, aic.scanner, opts...),
		ShoppingService:   shopping.NewService(store.items, store.products, opts...),
		SuggestionService: suggestion.NewService(store.products, store.items, aic.recipes, cfg.SuggestionLimit, opts...),
		UserService:       user.NewService(store.items, store.products),
		HealthChecker:     store.health,
	}
	srv.handler = handler.NewRouter(deps)

	if cfg.CleanupInterval > 0 {
		job := cleanup.NewCleanupJob(store.purger, slog.Default(), collector)
		job.RetentionDays = cfg.BoughtRetentionDays
		srv.cleanup = job
	}
	return srv, nil
}
