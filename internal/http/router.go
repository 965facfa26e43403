package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	JWTSecret      []byte
	CartTTL        time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter wires the storefront API under /api/v1 and a /health check.
func NewRouter(cfg RouterConfig, carts CartService, orders OrderService, favorites FavoriteService, log *zap.Logger) http.Handler {
	cartHandler := NewCartHandler(carts, cfg.RequestTimeout, log)
	ordersHandler := NewOrdersHandler(orders, carts, cfg.RequestTimeout, log)
	favoritesHandler := NewFavoritesHandler(favorites, cfg.RequestTimeout, log)

	auth := Authenticator(cfg.JWTSecret)
	session := CartSession(cfg.CartTTL)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Use(session)
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.With(session).Get("/checkout/quote", cartHandler.Quote)

		r.Route("/orders", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", ordersHandler.ListOrders)
			r.With(session).Post("/", ordersHandler.CreateOrder)
			r.Get("/{order_id}", ordersHandler.GetOrder)
			r.Patch("/{order_id}", ordersHandler.UpdateStatus)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", favoritesHandler.List)
			r.Post("/", favoritesHandler.Add)
			r.Get("/{product_id}", favoritesHandler.Status)
			r.Delete("/{product_id}", favoritesHandler.Remove)
			r.Post("/{product_id}/toggle", favoritesHandler.Toggle)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
