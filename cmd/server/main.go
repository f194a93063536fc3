package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/adityarao/campus-canteen/internal/config"
	"github.com/adityarao/campus-canteen/internal/database"
	"github.com/adityarao/campus-canteen/internal/handler"
	"github.com/adityarao/campus-canteen/internal/queue"
	"github.com/adityarao/campus-canteen/internal/repository"
	"github.com/adityarao/campus-canteen/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// nil when unreachable; cache and rate limiting then switch off.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, running without cache and rate limiting")
	}

	// Order lifecycle consumer runs for the life of the process and
	// reconnects on broker failures.
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order consumer stopped: %v", err)
		}
	}()

	counterRepo := repository.NewCounterRepo(db)
	menuRepo := repository.NewMenuRepo(db)
	rteRepo := repository.NewRTERepo(db)
	cartRepo := repository.NewCartRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	vendorRepo := repository.NewVendorRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, router.Handlers{
		Catalog:   handler.NewCatalogHandler(counterRepo, menuRepo),
		RTE:       handler.NewRTEHandler(rteRepo, cartRepo),
		Cart:      handler.NewCartHandler(cartRepo, menuRepo),
		Order:     handler.NewOrderHandler(orderRepo, cartRepo, menuRepo),
		Dashboard: handler.NewDashboardHandler(vendorRepo, orderRepo, rteRepo, counterRepo, menuRepo),
	}, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("campus canteen listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
