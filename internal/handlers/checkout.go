package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/champaran-pos/internal/checkout"
	"github.com/example/champaran-pos/internal/upload"
)

// ProofField is the multipart field carrying the payment screenshot.
const ProofField = "paymentScreenshot"

// CheckoutHandler places orders from the session cart.
type CheckoutHandler struct {
	workflow      *checkout.Workflow
	maxProofBytes int64
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(workflow *checkout.Workflow, maxProofBytes int64) *CheckoutHandler {
	return &CheckoutHandler{workflow: workflow, maxProofBytes: maxProofBytes}
}

// Checkout validates the form, archives the order and submits it to intake.
// Remote failures only add a warning; the caller always gets the order
// number once the order is archived.
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	store, err := sessionCart(c)
	if err != nil {
		return err
	}

	release, ok := store.BeginCheckout()
	if !ok {
		return fiber.NewError(fiber.StatusConflict, "checkout already in progress")
	}
	defer release()

	var form checkout.Form
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}

	proof, err := h.readProof(c)
	if err != nil {
		return err
	}

	res, err := h.workflow.Checkout(c.UserContext(), store, form, proof)
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"errors":  verr.Fields,
		})
	}
	if err != nil {
		log.WithError(err).Error("[Checkout] order could not be archived")
		return fiber.NewError(fiber.StatusInternalServerError, "order could not be saved, please try again")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order_number": res.Order.OrderNumber,
			"grand_total":  res.Order.GrandTotal,
			"state":        res.State,
			"submitted":    res.Submitted(),
			"confirmed":    res.Confirmed(),
			"warning":      res.Warning,
			"invoice_url":  "/api/orders/" + res.Order.OrderNumber,
		},
	})
}

// readProof loads the optional screenshot. Oversized files are read only up
// to one byte past the limit so validation can reject them.
func (h *CheckoutHandler) readProof(c *fiber.Ctx) (*upload.Image, error) {
	fh, err := c.FormFile(ProofField)
	if err != nil {
		// no file attached, or not a multipart request
		return nil, nil
	}
	return readMultipartImage(fh, h.maxProofBytes)
}

func readMultipartImage(fh *multipart.FileHeader, limit int64) (*upload.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable payment screenshot")
	}
	defer f.Close()

	reader := io.Reader(f)
	if limit > 0 {
		reader = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable payment screenshot")
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &upload.Image{Data: data, MimeType: mimeType, Name: fh.Filename}, nil
}
