package handlers

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/example/champaran-pos/internal/database"
	"github.com/example/champaran-pos/internal/models"
	"github.com/example/champaran-pos/internal/services"
	"github.com/example/champaran-pos/internal/utils"
)

// IntakeRepository stores orders received from storefronts.
type IntakeRepository interface {
	Save(ctx context.Context, rec *models.OrderRecord) (bool, error)
	List(ctx context.Context, f database.OrderFilter) ([]models.OrderRecord, int64, error)
	Get(ctx context.Context, orderNumber string) (models.OrderRecord, error)
	UpdateStatus(ctx context.Context, orderNumber, status string) (models.OrderRecord, string, error)
}

// IntakeHandler is the remote order-intake endpoint and its back office.
type IntakeHandler struct {
	repo      IntakeRepository
	notify *services.Dispatcher
	schema *gojsonschema.Schema
}

// NewIntakeHandler constructs IntakeHandler. notify may be nil.
func NewIntakeHandler(repo IntakeRepository, notify *services.Dispatcher) (*IntakeHandler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(intakeSchema))
	if err != nil {
		return nil, errors.Wrap(err, "compile intake schema")
	}
	return &IntakeHandler{repo: repo, notify: notify, schema: schema}, nil
}

// Submit accepts a JSON order document.
func (h *IntakeHandler) Submit(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return intakeError(c, fiber.StatusBadRequest, "Request body is required")
	}

	if msg := h.validate(gojsonschema.NewBytesLoader(body)); msg != "" {
		return intakeError(c, fiber.StatusBadRequest, msg)
	}

	var payload models.IntakePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return intakeError(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	return h.accept(c, payload)
}

// SubmitQuery accepts the same document flattened into query parameters.
func (h *IntakeHandler) SubmitQuery(c *fiber.Ctx) error {
	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return intakeError(c, fiber.StatusBadRequest, "Invalid query string")
	}

	payload, err := models.IntakePayloadFromQuery(query)
	if err != nil {
		return intakeError(c, fiber.StatusBadRequest, err.Error())
	}

	if msg := h.validate(gojsonschema.NewGoLoader(payload)); msg != "" {
		return intakeError(c, fiber.StatusBadRequest, msg)
	}
	return h.accept(c, payload)
}

func (h *IntakeHandler) accept(c *fiber.Ctx, payload models.IntakePayload) error {
	rec := models.NewOrderRecord(payload)
	created, err := h.repo.Save(c.UserContext(), &rec)
	if err != nil {
		log.WithField("order_number", payload.OrderNumber).WithError(err).Error("[Intake] failed to store order")
		return intakeError(c, fiber.StatusInternalServerError, "Failed to store order")
	}

	logger := log.WithField("order_number", rec.OrderNumber)
	if !created {
		logger.Info("[Intake] duplicate order acknowledged")
		return c.JSON(models.IntakeResponse{
			Status:      models.IntakeStatusSuccess,
			Message:     "Order already received",
			OrderNumber: rec.OrderNumber,
			Duplicate:   true,
		})
	}

	logger.Info("[Intake] order stored")
	h.notify.NewOrder(rec)

	return c.JSON(models.IntakeResponse{
		Status:      models.IntakeStatusSuccess,
		Message:     "Order received",
		OrderNumber: rec.OrderNumber,
	})
}

// validate returns a readable message for the first schema violations, or "".
func (h *IntakeHandler) validate(doc gojsonschema.JSONLoader) string {
	result, err := h.schema.Validate(doc)
	if err != nil {
		return "Invalid JSON body"
	}
	if result.Valid() {
		return ""
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}

func intakeError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(models.IntakeResponse{
		Status:  models.IntakeStatusError,
		Message: message,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// ListOrders returns received orders for the back office.
func (h *IntakeHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := database.OrderFilter{
		Status: strings.ToLower(c.Query("status")),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status")
	}
	if days := c.Query("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "days must be a positive integer")
		}
		filter.Since = time.Now().AddDate(0, 0, -n)
	}

	orders, total, err := h.repo.List(c.UserContext(), filter)
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

// GetOrder returns one received order.
func (h *IntakeHandler) GetOrder(c *fiber.Ctx) error {
	rec, err := h.repo.Get(c.UserContext(), c.Params("orderNumber"))
	if errors.Is(err, database.ErrOrderNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": rec})
}

// UpdateStatus moves a received order through fulfilment.
func (h *IntakeHandler) UpdateStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !models.ValidStatus(status) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status")
	}

	rec, previous, err := h.repo.UpdateStatus(c.UserContext(), c.Params("orderNumber"), status)
	if errors.Is(err, database.ErrOrderNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	if err != nil {
		return err
	}

	if previous != status {
		h.notify.StatusChange(rec, previous)
	}
	return c.JSON(fiber.Map{"success": true, "data": rec})
}
