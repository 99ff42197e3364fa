package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trolleylabs/trolley-backend/api/controllers"
	"github.com/trolleylabs/trolley-backend/api/middleware"
	cartsvc "github.com/trolleylabs/trolley-backend/internal/cart"
	checkoutsvc "github.com/trolleylabs/trolley-backend/internal/checkout"
	productsvc "github.com/trolleylabs/trolley-backend/internal/product"
	"github.com/trolleylabs/trolley-backend/pkg/config"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
	pkgredis "github.com/trolleylabs/trolley-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          interface{ Ping(context.Context) error }
	Redis       *pkgredis.Client
	Carts       *cartsvc.Service
	Products    *productsvc.Service
	Coordinator *checkoutsvc.Service
	Registry    *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.CORS(),
	)

	var redisP pkgredis.Pinger
	if deps.Redis != nil {
		redisP = deps.Redis
	}

	r.Get("/healthz", controllers.HealthLive(deps.Config))
	r.Get("/readyz", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, redisP))

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	var idemStore pkgredis.IdempotencyStore
	if deps.Redis != nil {
		idemStore = deps.Redis
	}

	limitPolicy := middleware.RateLimitPolicy{}
	if deps.Config != nil && deps.Config.RateLimit.Enabled {
		limitPolicy = middleware.NewRateLimitPolicy(deps.Config.RateLimit.Requests, deps.Config.RateLimit.Window)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Redis != nil {
			r.Use(middleware.RateLimit(limitPolicy, deps.Redis, deps.Logger))
		}
		r.Use(middleware.Idempotency(idemStore, deps.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Post("/", controllers.CartCreate(deps.Carts, deps.Logger))
			r.Get("/user/{userId}/carts", controllers.CartListByUser(deps.Carts, deps.Logger))
			r.Route("/{cartId}", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Carts, deps.Logger))
				r.Post("/items", controllers.CartAddItem(deps.Coordinator, deps.Logger))
				r.Delete("/items", controllers.CartRemoveItem(deps.Coordinator, deps.Logger))
				r.Post("/checkout", controllers.CartCheckout(deps.Coordinator, deps.Logger))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Products, deps.Logger))
			r.Post("/", controllers.ProductCreate(deps.Products, deps.Logger))
			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", controllers.ProductFetch(deps.Products, deps.Logger))
				r.Patch("/", controllers.ProductUpdate(deps.Products, deps.Logger))
				r.Post("/restock", controllers.ProductRestock(deps.Products, deps.Logger))
				r.Post("/price", controllers.ProductChangePrice(deps.Products, deps.Logger))
			})
		})
	})

	return r
}
