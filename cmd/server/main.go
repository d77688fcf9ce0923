package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/virtanum/internal/config"
	"github.com/example/virtanum/internal/database"
	"github.com/example/virtanum/internal/repository"
	"github.com/example/virtanum/internal/routes"
	"github.com/example/virtanum/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	smspool := services.NewSMSPoolClient(services.SMSPoolConfig{
		BaseURL: cfg.SMSPoolBaseURL,
		AuthURL: cfg.SMSPoolAuthURL,
		Secret:  cfg.SMSPoolSecret,
	})

	providers := []services.Provider{smspool}
	tigersms := services.NewTigerSMSClient(services.TigerSMSConfig{
		BaseURL: cfg.TigerSMSBaseURL,
		APIKey:  cfg.TigerSMSAPIKey,
		Enabled: cfg.TigerSMSEnabled,
	})
	if tigersms.Enabled() {
		providers = append(providers, tigersms)
	}

	catalog := services.NewCatalog(providers...)
	router := services.NewAutoRouter(catalog)

	orders := repository.NewOrderRepository(db)
	wallet := repository.NewWalletRepository(db)
	notifier := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)

	orch := services.NewOrchestrator(catalog, router, orders, wallet, cfg.OrderTTL)
	poller := services.NewPoller(orders, catalog, notifier)
	lifecycle := services.NewLifecycle(orders, wallet, catalog, notifier)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go lifecycle.RunExpirySweeper(ctx, cfg.ExpirySweep)

	app := fiber.New(fiber.Config{
		AppName: "Virtanum Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, routes.Deps{
		Catalog:   catalog,
		Orch:      orch,
		Poller:    poller,
		Lifecycle: lifecycle,
		Orders:    orders,
		Wallet:    wallet,
	})

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
