package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/champaran-pos/internal/cart"
	"github.com/example/champaran-pos/internal/checkout"
	"github.com/example/champaran-pos/internal/handlers"
	"github.com/example/champaran-pos/internal/middleware"
	"github.com/example/champaran-pos/internal/pricing"
	"github.com/example/champaran-pos/internal/services"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Engine        *pricing.Engine
	Carts         *cart.Registry
	CartMaxAge    time.Duration
	Workflow      *checkout.Workflow
	Orders        handlers.OrderStore
	MaxProofBytes int64

	// Intake is nil when this instance does not serve the intake endpoint.
	Intake       handlers.IntakeRepository
	IntakeAPIKey string
	Notify       *services.Dispatcher
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Dependencies) error {
	cartHandler := handlers.NewCartHandler(d.Engine)
	checkoutHandler := handlers.NewCheckoutHandler(d.Workflow, d.MaxProofBytes)
	orderHandler := handlers.NewOrderHandler(d.Orders)

	api := app.Group("/api")

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})

	session := middleware.CartSession(d.Carts, d.CartMaxAge)

	// Cart routes
	cartGroup := api.Group("/cart", session)
	cartGroup.Get("/", cartHandler.GetCart)
	cartGroup.Delete("/", cartHandler.Clear)
	cartGroup.Post("/items", cartHandler.AddItem)
	cartGroup.Patch("/items/:index", cartHandler.UpdateQuantity)
	cartGroup.Delete("/items/:index", cartHandler.RemoveItem)

	// Checkout
	api.Post("/checkout", session, checkoutHandler.Checkout)

	// Local order archive, scoped to the caller's session
	orders := api.Group("/orders", session)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:orderNumber", orderHandler.GetOrder)
	orders.Get("/:orderNumber/proof", orderHandler.GetProof)

	if d.Intake == nil {
		return nil
	}

	intakeHandler, err := handlers.NewIntakeHandler(d.Intake, d.Notify)
	if err != nil {
		return err
	}

	// Order intake
	intake := api.Group("/intake", middleware.IntakeAuth(d.IntakeAPIKey))
	intake.Post("/", intakeHandler.Submit)
	intake.Get("/", intakeHandler.SubmitQuery)
	intake.Get("/orders", intakeHandler.ListOrders)
	intake.Get("/orders/:orderNumber", intakeHandler.GetOrder)
	intake.Patch("/orders/:orderNumber/status", intakeHandler.UpdateStatus)
	return nil
}
