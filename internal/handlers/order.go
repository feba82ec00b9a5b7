package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/champaran-pos/internal/archive"
	"github.com/example/champaran-pos/internal/models"
	"github.com/example/champaran-pos/internal/utils"
)

// OrderStore is what the order views read from the local archive.
type OrderStore interface {
	archive.Archive
	archive.DeliveryLog
	archive.ProofStash
}

// OrderHandler serves archived orders: history, invoices and stashed proofs.
type OrderHandler struct {
	store OrderStore
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(store OrderStore) *OrderHandler {
	return &OrderHandler{store: store}
}

type orderView struct {
	models.Order
	DeliveryStatus *models.DeliveryStatus `json:"delivery_status"`
	// SavedLocallyOnly is true when no transport took the order.
	SavedLocallyOnly bool `json:"saved_locally_only"`
}

// ListOrders returns the caller's archived orders, newest first.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	ctx := c.UserContext()
	pg := utils.ParsePagination(c)

	session, err := sessionID(c)
	if err != nil {
		return err
	}

	all, err := h.store.All(ctx)
	if err != nil {
		return errors.Wrap(err, "list archived orders")
	}
	orders := make([]models.Order, 0, len(all))
	for _, o := range all {
		if o.SessionID == session {
			orders = append(orders, o)
		}
	}

	total := len(orders)
	views := make([]orderView, 0, pg.Limit)
	for i := total - 1 - pg.Offset; i >= 0 && len(views) < pg.Limit; i-- {
		views = append(views, h.view(ctx, orders[i]))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    views,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns one of the caller's archived orders for the invoice view.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.ownOrder(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": h.view(c.UserContext(), order)})
}

// GetProof serves the payment screenshot kept when its upload failed.
func (h *OrderHandler) GetProof(c *fiber.Ctx) error {
	order, err := h.ownOrder(c)
	if err != nil {
		return err
	}

	proof, err := h.store.Proof(c.UserContext(), order.OrderNumber)
	if errors.Is(err, archive.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "no stored payment screenshot for this order")
	}
	if err != nil {
		return err
	}

	if proof.FileName != "" {
		c.Attachment(proof.FileName)
	}
	c.Set(fiber.HeaderContentType, proof.MimeType)
	return c.Send(proof.Data)
}

// ownOrder loads the order named in the path. Orders placed by another
// session are reported as missing.
func (h *OrderHandler) ownOrder(c *fiber.Ctx) (models.Order, error) {
	session, err := sessionID(c)
	if err != nil {
		return models.Order{}, err
	}

	order, err := h.store.FindByOrderNumber(c.UserContext(), c.Params("orderNumber"))
	if errors.Is(err, archive.ErrNotFound) || (err == nil && order.SessionID != session) {
		return models.Order{}, fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	if err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func sessionID(c *fiber.Ctx) (string, error) {
	store, err := sessionCart(c)
	if err != nil {
		return "", err
	}
	if store.ID() == "" {
		return "", fiber.NewError(fiber.StatusInternalServerError, "cart session missing")
	}
	return store.ID(), nil
}

func (h *OrderHandler) view(ctx context.Context, order models.Order) orderView {
	v := orderView{Order: order}
	status, err := h.store.Delivery(ctx, order.OrderNumber)
	switch {
	case err == nil:
		v.DeliveryStatus = &status
		v.SavedLocallyOnly = !status.Submitted()
	case !errors.Is(err, archive.ErrNotFound):
		log.WithField("order_number", order.OrderNumber).WithError(err).Warn("[Order] failed to load delivery status")
	}
	return v
}
