package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/kitchenstock/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder

	// 認証不要のエンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	ProductService    ProductServiceInterface
	ShoppingService   ShoppingServiceInterface
	SuggestionService SuggestionServiceInterface
	UserService       UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS → Auth → RateLimit(General) [→ RateLimit(AI)]
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, methodNotAllowedError())
	})

	productHandler := NewProductHandler(deps.ProductService)
	shoppingHandler := NewShoppingHandler(deps.ShoppingService)
	suggestionHandler := NewSuggestionHandler(deps.SuggestionService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---
	r.Get("/health", Health(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// AIを呼び出すエンドポイントには専用のレート制限を追加する
		ai := deps.RateLimiter.AIMiddleware()

		// 在庫管理
		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)

			r.With(ai).Post("/estimate-expiry-date", productHandler.EstimateExpiryDate)
			r.With(ai).Post("/identify/image", productHandler.IdentifyByImage)
			r.With(ai).Post("/identify/barcode", productHandler.IdentifyByBarcode)
			r.With(ai).Post("/scan-receipt", productHandler.ScanReceipt)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", productHandler.Get)
				r.Put("/", productHandler.Update)
				r.Delete("/", productHandler.Delete)
				r.With(ai).Post("/estimate-expiry", productHandler.EstimateExpiry)
			})
		})

		// 買い物リスト
		r.Route("/api/shopping-items", func(r chi.Router) {
			r.Get("/", shoppingHandler.List)
			r.Post("/", shoppingHandler.Create)
			r.Delete("/bought", shoppingHandler.ClearBought)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", shoppingHandler.Get)
				r.Patch("/", shoppingHandler.Update)
				r.Delete("/", shoppingHandler.Delete)
			})
		})

		// 提案
		r.Route("/api/suggestions", func(r chi.Router) {
			r.With(ai).Get("/", suggestionHandler.Recipes)
			r.Get("/shopping", suggestionHandler.Shopping)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
