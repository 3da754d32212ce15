package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	JWTSecret          []byte
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Log                *zap.Logger
}

type Handlers struct {
	Items     *ItemHandler
	Cart      *CartHandler
	Orders    *OrdersHandler
	Addresses *AddressHandler
	Admin     *AdminHandler
}

func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))
	r.Use(Authenticate(cfg.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.Items.ListItems)
			r.Get("/{item_id}", h.Items.GetItem)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(Session)
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Delete("/items/{item_id}/{variant}", h.Cart.RemoveItem)
			r.Post("/promo", h.Cart.ApplyPromo)
			r.Delete("/promo", h.Cart.RemovePromo)
			r.Post("/reconcile", h.Cart.Reconcile)
			r.With(RequireUser).Post("/login", h.Cart.Login)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireUser)
			r.With(Session).Post("/", h.Orders.PlaceOrder)
			r.Get("/", h.Orders.ListOrders)
			r.Get("/{order_id}", h.Orders.GetOrder)
			r.Post("/{order_id}/verify-payment", h.Orders.VerifyPayment)
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", h.Addresses.List)
			r.Post("/", h.Addresses.Add)
			r.Put("/{address_id}", h.Addresses.Update)
			r.Delete("/{address_id}", h.Addresses.Delete)
			r.Post("/{address_id}/default", h.Addresses.SetDefault)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/orders", h.Admin.ListOrders)
			r.Get("/customers", h.Admin.ListCustomers)
			r.Patch("/orders/{order_id}/status", h.Admin.UpdateStatus)
			r.Delete("/orders/{order_id}", h.Admin.DeleteOrder)
			r.Post("/items", h.Admin.CreateItem)
			r.Put("/items/{item_id}", h.Admin.UpdateItem)
			r.Patch("/items/{item_id}/status", h.Admin.SetItemStatus)
			r.Delete("/items/{item_id}", h.Admin.DeleteItem)
		})
	})

	return otelhttp.NewHandler(r, "shop")
}
