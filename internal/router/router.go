// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/adityarao/campus-canteen/internal/config"
	"github.com/adityarao/campus-canteen/internal/handler"
	"github.com/adityarao/campus-canteen/internal/middleware"
	"github.com/adityarao/campus-canteen/internal/model"
)

// Handlers bundles every handler the router needs.
type Handlers struct {
	Catalog   *handler.CatalogHandler
	RTE       *handler.RTEHandler
	Cart      *handler.CartHandler
	Order     *handler.OrderHandler
	Dashboard *handler.DashboardHandler
}

// Register mounts all routes on the Echo instance.
//
// Three surfaces exist:
//   - public browse: health, counters, menus and the ready-to-eat
//     listing, no token required.  Catalog reads sit behind the Redis
//     response cache; the listing only gets optional auth so signed-in
//     viewers keep seeing units their own cart claims.
//   - customer: cart, claims and orders, any authenticated account.
//   - dashboard: vendor-only order management and menu administration.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	e.Use(limit)

	pub := e.Group("/v1")
	pub.GET("/counters", h.Catalog.ListCounters, cache)
	pub.GET("/counters/:id/menu", h.Catalog.CounterMenu, cache)
	pub.GET("/ready-to-eat", h.RTE.ListAvailable, middleware.OptionalJWTAuth(cfg.JWTSecret))

	cust := e.Group("/v1")
	cust.Use(middleware.JWTAuth(cfg.JWTSecret))
	cust.Use(middleware.RequireRole(model.RoleCustomer, model.RoleVendor))
	cust.POST("/ready-to-eat/:id/claim", h.RTE.Claim)
	cust.GET("/cart", h.Cart.View)
	cust.POST("/cart/items", h.Cart.AddItem)
	cust.DELETE("/cart/items/:id", h.Cart.RemoveItem)
	cust.POST("/orders", h.Order.Place)
	cust.GET("/orders", h.Order.List)
	cust.GET("/orders/:id", h.Order.Get)
	cust.GET("/orders/:id/status", h.Order.Status)
	cust.POST("/orders/:id/cancel", h.Order.Cancel)

	dash := e.Group("/v1/dashboard")
	dash.Use(middleware.JWTAuth(cfg.JWTSecret))
	dash.Use(middleware.RequireRole(model.RoleVendor))
	dash.GET("", h.Dashboard.Home)
	dash.GET("/orders/:id", h.Dashboard.OrderDetail)
	dash.PATCH("/orders/:id/status", h.Dashboard.UpdateStatus)
	dash.POST("/orders/:id/cancel", h.Dashboard.Cancel)
	dash.POST("/pickup/verify", h.Dashboard.VerifyPickup)
	dash.POST("/menu/items", h.Dashboard.CreateMenuItem)
	dash.PUT("/menu/items/:id", h.Dashboard.UpdateMenuItem)
	dash.POST("/menu/items/:id/variations", h.Dashboard.CreateVariation)
}
