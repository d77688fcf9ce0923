package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/virtanum/internal/config"
	"github.com/example/virtanum/internal/handlers"
	"github.com/example/virtanum/internal/middleware"
	"github.com/example/virtanum/internal/repository"
	"github.com/example/virtanum/internal/services"
)

// Deps carries the wired service layer into route registration.
type Deps struct {
	Catalog   *services.Catalog
	Orch      *services.Orchestrator
	Poller    *services.Poller
	Lifecycle *services.Lifecycle
	Orders    *repository.OrderRepository
	Wallet    *repository.WalletRepository
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	authHandler := handlers.NewAuthHandler(db, cfg)
	smsHandler := handlers.NewSMSHandler(deps.Catalog, deps.Orch, deps.Poller, deps.Lifecycle, deps.Orders, cfg)
	walletHandler := handlers.NewWalletHandler(deps.Wallet)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	sms := protected.Group("/sms")
	sms.Get("/countries", smsHandler.ListCountries)
	sms.Get("/services", smsHandler.ListServices)
	sms.Get("/services/all", smsHandler.ListServicesAllProviders)
	sms.Post("/order", smsHandler.CreateOrder)
	sms.Post("/code", smsHandler.CheckCode)
	sms.Post("/code/wait", smsHandler.WaitForCode)
	sms.Post("/cancel", smsHandler.CancelOrder)
	sms.Get("/orders", smsHandler.ListOrders)
	sms.Get("/orders/:id", smsHandler.GetOrder)

	wallet := protected.Group("/wallet")
	wallet.Get("/", walletHandler.GetWallet)
	wallet.Get("/transactions", walletHandler.ListTransactions)
	wallet.Post("/topup", walletHandler.Topup)
}
