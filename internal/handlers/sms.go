package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/virtanum/internal/config"
	"github.com/example/virtanum/internal/middleware"
	"github.com/example/virtanum/internal/services"
	"github.com/example/virtanum/internal/utils"
)

// SMSHandler serves the virtual-number endpoints.
type SMSHandler struct {
	catalog   *services.Catalog
	orch      *services.Orchestrator
	poller    *services.Poller
	lifecycle *services.Lifecycle
	store     services.OrderStore
	cfg       *config.Config
}

// NewSMSHandler constructs an SMSHandler.
func NewSMSHandler(catalog *services.Catalog, orch *services.Orchestrator, poller *services.Poller, lifecycle *services.Lifecycle, store services.OrderStore, cfg *config.Config) *SMSHandler {
	return &SMSHandler{
		catalog:   catalog,
		orch:      orch,
		poller:    poller,
		lifecycle: lifecycle,
		store:     store,
		cfg:       cfg,
	}
}

// ListCountries returns the merged country catalog, optionally narrowed to
// one provider.
func (h *SMSHandler) ListCountries(c *fiber.Ctx) error {
	countries, err := h.catalog.ListCountries(c.Context(), c.Query("provider"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": countries})
}

// ListServices returns the ranked service catalog for a country. An empty
// list means no provider has anything there; pick another country.
func (h *SMSHandler) ListServices(c *fiber.Ctx) error {
	list, err := h.catalog.ListServices(c.Context(), c.Query("country"), c.Query("provider"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": list})
}

// ListServicesAllProviders returns per-provider ranked service groups.
func (h *SMSHandler) ListServicesAllProviders(c *fiber.Ctx) error {
	groups, err := h.catalog.ListServicesAllProviders(c.Context(), c.Query("country"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": groups})
}

type createOrderRequest struct {
	Service   string `json:"service"`
	Country   string `json:"country"`
	ServiceID string `json:"service_id"`
	Mode      string `json:"mode"`
	Provider  string `json:"provider"`
}

// CreateOrder purchases a number for the authenticated user.
func (h *SMSHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	// Manual mode addresses the provider's own code; auto mode goes by the
	// natural-language service name.
	serviceKey := req.ServiceID
	if serviceKey == "" {
		serviceKey = req.Service
	}

	order, err := h.orch.CreateOrder(c.Context(), userID, services.CreateOrderInput{
		CountryCode: req.Country,
		ServiceKey:  serviceKey,
		Mode:        req.Mode,
		Provider:    req.Provider,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

type orderRefRequest struct {
	OrderID string `json:"order_id"`
}

func (h *SMSHandler) parseOrderRef(c *fiber.Ctx) (uuid.UUID, error) {
	var req orderRefRequest
	if err := c.BodyParser(&req); err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	id, err := uuid.Parse(req.OrderID)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid order_id")
	}
	return id, nil
}

// CheckCode performs a single status check. An empty code means the SMS has
// not arrived yet.
func (h *SMSHandler) CheckCode(c *fiber.Ctx) error {
	orderID, err := h.parseOrderRef(c)
	if err != nil {
		return err
	}

	check, err := h.poller.CheckOnce(c.Context(), orderID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": check})
}

// WaitForCode runs a bounded polling session with the configured attempt
// budget and interval. Disconnecting cancels the session.
func (h *SMSHandler) WaitForCode(c *fiber.Ctx) error {
	orderID, err := h.parseOrderRef(c)
	if err != nil {
		return err
	}

	code, err := h.poller.PollForCode(c.Context(), orderID, h.cfg.PollAttempts, h.cfg.PollInterval)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"code": code}})
}

// CancelOrder cancels a pending order and refunds it.
func (h *SMSHandler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := h.parseOrderRef(c)
	if err != nil {
		return err
	}

	confirmation, err := h.lifecycle.CancelOrder(c.Context(), userID, orderID)
	if err != nil {
		return serviceError(c, err)
	}

	message := "order cancelled, wallet refunded"
	if confirmation.AlreadyRequested {
		message = "refund already requested"
	}
	return c.JSON(fiber.Map{"success": true, "message": message, "data": confirmation})
}

// ListOrders returns the authenticated user's order history.
func (h *SMSHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.store.ListForUser(c.Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *SMSHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.store.ByIDForUser(c.Context(), userID, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}
