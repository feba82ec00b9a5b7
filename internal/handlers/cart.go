package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/example/champaran-pos/internal/cart"
	"github.com/example/champaran-pos/internal/middleware"
	"github.com/example/champaran-pos/internal/models"
	"github.com/example/champaran-pos/internal/pricing"
)

// CartHandler manages the session cart.
type CartHandler struct {
	engine *pricing.Engine
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(engine *pricing.Engine) *CartHandler {
	return &CartHandler{engine: engine}
}

type addItemRequest struct {
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	Variant     string      `json:"variant"`
	Size        models.Size `json:"size"`
	SKU         string      `json:"sku"`
	UnitPrice   int64       `json:"unit_price"`
	Quantity    int         `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the lines and current totals.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	store, err := sessionCart(c)
	if err != nil {
		return err
	}
	return h.respond(c, fiber.StatusOK, store)
}

// AddItem adds a line or merges it into an existing one.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	store, err := sessionCart(c)
	if err != nil {
		return err
	}

	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	err = store.AddItem(models.LineItem{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		VariantName: req.Variant,
		Size:        req.Size,
		SKU:         req.SKU,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
	})
	if errors.Is(err, cart.ErrInvalidItem) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return h.respond(c, fiber.StatusCreated, store)
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	store, err := sessionCart(c)
	if err != nil {
		return err
	}
	index, err := lineIndex(c)
	if err != nil {
		return err
	}

	var req updateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	store.UpdateQuantity(index, req.Quantity)
	return h.respond(c, fiber.StatusOK, store)
}

// RemoveItem drops a line. Unknown indexes are ignored.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	store, err := sessionCart(c)
	if err != nil {
		return err
	}
	index, err := lineIndex(c)
	if err != nil {
		return err
	}

	store.RemoveItem(index)
	return h.respond(c, fiber.StatusOK, store)
}

// Clear empties the cart.
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	store, err := sessionCart(c)
	if err != nil {
		return err
	}
	store.Clear()
	return h.respond(c, fiber.StatusOK, store)
}

func (h *CartHandler) respond(c *fiber.Ctx, status int, store *cart.Store) error {
	items := store.Items()
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"items":  items,
			"totals": h.engine.Compute(items),
		},
	})
}

func sessionCart(c *fiber.Ctx) (*cart.Store, error) {
	store, ok := middleware.GetCart(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "cart session missing")
	}
	return store, nil
}

func lineIndex(c *fiber.Ctx) (int, error) {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid line index")
	}
	return index, nil
}
