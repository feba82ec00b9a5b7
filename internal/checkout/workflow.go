// Package checkout turns a cart and a customer form into an archived order and
// hands it to the remote order intake.
package checkout

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/champaran-pos/internal/archive"
	"github.com/example/champaran-pos/internal/cart"
	"github.com/example/champaran-pos/internal/models"
	"github.com/example/champaran-pos/internal/pricing"
	"github.com/example/champaran-pos/internal/submission"
	"github.com/example/champaran-pos/internal/upload"
)

// State is a step of a single checkout attempt.
type State string

const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateInvalid            State = "invalid"
	StateUploadingProof     State = "uploading_proof"
	StateSubmitting         State = "submitting"
	StatePersisted          State = "persisted"
	StateFailedButPersisted State = "failed_but_persisted"
)

// Screenshot references sent to intake when there is no public URL.
const (
	ScreenshotUploadFailed = "Upload failed - stored locally"
	ScreenshotNotUploaded  = "Not uploaded"
)

const (
	paymentMethod      = "Payment Screenshot"
	initialOrderStatus = "Pending"
	savedLocallyNotice = "Order saved locally, pending manual reconciliation"
)

// Uploader stores a payment screenshot and reports where it went.
type Uploader interface {
	Upload(ctx context.Context, img upload.Image) upload.Result
}

// Submitter delivers an intake payload to the remote endpoint.
type Submitter interface {
	Submit(ctx context.Context, payload models.IntakePayload) submission.Report
}

// Config holds the workflow's policy knobs.
type Config struct {
	OrderPrefix string
	APIKey      string
	Proof       ProofPolicy
}

// Deps are the collaborators of a Workflow. Uploader, Deliveries and Proofs
// may be nil.
type Deps struct {
	Engine     *pricing.Engine
	Uploader   Uploader
	Submitter  Submitter
	Archive    archive.Archive
	Deliveries archive.DeliveryLog
	Proofs     archive.ProofStash
}

// Result describes a finished checkout. The order is always archived when a
// Result is returned.
type Result struct {
	Order    models.Order
	State    State
	Delivery models.DeliveryStatus
	// Warning is empty on the silent success path.
	Warning   string
	UploadErr error
}

// Submitted reports whether some transport took the order.
func (r *Result) Submitted() bool {
	return r.Delivery.Submitted()
}

// Confirmed reports whether the intake acknowledged the order.
func (r *Result) Confirmed() bool {
	return r.Delivery.Outcome == models.DeliveryConfirmed
}

// Workflow runs checkouts. It is safe for concurrent use as long as its
// collaborators are.
type Workflow struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// NewWorkflow validates the wiring and returns a Workflow.
func NewWorkflow(cfg Config, deps Deps) (*Workflow, error) {
	if deps.Engine == nil {
		return nil, errors.New("checkout: pricing engine is required")
	}
	if deps.Archive == nil {
		return nil, errors.New("checkout: order archive is required")
	}
	if deps.Submitter == nil {
		return nil, errors.New("checkout: submitter is required")
	}
	if cfg.OrderPrefix == "" {
		cfg.OrderPrefix = DefaultOrderPrefix
	}
	return &Workflow{cfg: cfg, deps: deps, now: time.Now}, nil
}

// Checkout validates the form, archives the order and submits it. A
// *ValidationError means nothing happened and the caller may retry. Any other
// error means the order could not be archived; the cart is left as it was
// unless the order did reach the archive first. Only the ordered lines are
// taken out of the cart, so items added while the checkout runs survive it.
func (w *Workflow) Checkout(ctx context.Context, store *cart.Store, form Form, proof *upload.Image) (res *Result, err error) {
	form = form.Normalize()
	items := store.Items()

	w.transition("", StateValidating)
	if verr := Validate(form, proof, w.cfg.Proof, len(items)); verr != nil {
		w.transition("", StateInvalid)
		return nil, verr
	}

	now := w.now()
	totals := w.deps.Engine.Compute(items)
	order := models.Order{
		OrderNumber:       GenerateOrderNumber(w.cfg.OrderPrefix, now),
		SessionID:         store.ID(),
		CustomerName:      form.CustomerName,
		Address:           form.Address,
		Pincode:           form.Pincode,
		Contact:           form.Contact,
		TLName:            form.TLName,
		MemberName:        form.MemberName,
		OrderNote:         form.OrderNote,
		Subtotal:          totals.Subtotal,
		DiscountRate:      totals.DiscountRate,
		Discount:          totals.Discount,
		Delivery:          totals.Delivery,
		GrandTotal:        totals.GrandTotal,
		PaymentScreenshot: ScreenshotNotUploaded,
		Items:             items,
		Timestamp:         now,
	}
	logger := log.WithField("order_number", order.OrderNumber)
	if totals.Clamped {
		logger.Error("[Checkout] grand total clamped to zero, check pricing configuration")
	}

	persisted := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.WithField("panic", r).Error("[Checkout] recovered from panic")
		if !persisted {
			if aerr := w.deps.Archive.Append(ctx, order); aerr != nil {
				res, err = nil, errors.Wrapf(aerr, "archive order %s after panic", order.OrderNumber)
				return
			}
		}
		store.RemoveOrdered(items)
		res, err = nil, errors.Errorf("checkout %s: unexpected failure: %v", order.OrderNumber, r)
	}()

	var uploadErr error
	if proof != nil && len(proof.Data) > 0 {
		w.transition(order.OrderNumber, StateUploadingProof)
		order.PaymentScreenshotURL, uploadErr = w.resolveProof(ctx, order.OrderNumber, *proof)
		if uploadErr != nil {
			order.PaymentScreenshot = ScreenshotUploadFailed
		} else {
			order.PaymentScreenshot = order.PaymentScreenshotURL
		}
	}

	if err := w.deps.Archive.Append(ctx, order); err != nil {
		logger.WithError(err).Error("[Checkout] failed to archive order")
		return nil, errors.Wrapf(err, "archive order %s", order.OrderNumber)
	}
	persisted = true

	w.transition(order.OrderNumber, StateSubmitting)
	report := w.submit(ctx, BuildPayload(order, w.cfg.APIKey))
	delivery := report.Status(w.now())
	if w.deps.Deliveries != nil {
		if err := w.deps.Deliveries.RecordDelivery(ctx, order.OrderNumber, delivery); err != nil {
			logger.WithError(err).Warn("[Checkout] failed to record delivery status")
		}
	}

	store.RemoveOrdered(items)

	res = &Result{Order: order, Delivery: delivery, UploadErr: uploadErr, State: StatePersisted}
	if !report.Delivered() {
		res.State = StateFailedButPersisted
		res.Warning = savedLocallyNotice
		logger.WithError(report.Err).Warn("[Checkout] order saved locally only")
	} else {
		logger.WithFields(log.Fields{"transport": report.Transport, "outcome": report.Outcome.String()}).Info("[Checkout] order submitted")
	}
	w.transition(order.OrderNumber, res.State)
	return res, nil
}

// resolveProof uploads the screenshot. On failure the raw image is stashed
// under the order number so it can be recovered by hand.
func (w *Workflow) resolveProof(ctx context.Context, orderNumber string, img upload.Image) (publicURL string, err error) {
	logger := log.WithField("order_number", orderNumber)

	defer func() {
		if r := recover(); r != nil {
			publicURL, err = "", errors.Errorf("upload panic: %v", r)
		}
		if err != nil {
			logger.WithError(err).Warn("[Checkout] payment screenshot upload failed")
			w.stashProof(ctx, orderNumber, img)
		}
	}()

	if w.deps.Uploader == nil {
		return "", errors.New("no image uploader configured")
	}
	result := w.deps.Uploader.Upload(ctx, img)
	if !result.OK() {
		if result.Err == nil {
			return "", errors.New("upload returned no url")
		}
		return "", result.Err
	}
	logger.WithField("provider", result.Provider).Info("[Checkout] payment screenshot uploaded")
	return result.PublicURL, nil
}

func (w *Workflow) stashProof(ctx context.Context, orderNumber string, img upload.Image) {
	if w.deps.Proofs == nil {
		return
	}
	proof := models.StoredProof{
		FileName: img.Name,
		MimeType: img.MimeType,
		Data:     img.Data,
		StoredAt: w.now(),
	}
	if err := w.deps.Proofs.StoreProof(ctx, orderNumber, proof); err != nil {
		log.WithField("order_number", orderNumber).WithError(err).Error("[Checkout] failed to stash payment screenshot")
	}
}

// submit never panics; a misbehaving submitter counts as a failed delivery.
func (w *Workflow) submit(ctx context.Context, payload models.IntakePayload) (report submission.Report) {
	defer func() {
		if r := recover(); r != nil {
			report = submission.Report{Outcome: submission.Failed, Err: errors.Errorf("submit panic: %v", r)}
		}
	}()
	return w.deps.Submitter.Submit(ctx, payload)
}

func (w *Workflow) transition(orderNumber string, s State) {
	log.WithFields(log.Fields{"order_number": orderNumber, "state": string(s)}).Debug("[Checkout] state")
}

// BuildPayload converts an archived order into the intake document.
func BuildPayload(order models.Order, apiKey string) models.IntakePayload {
	items := make([]models.IntakeItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, models.IntakeItem{
			ProductName:    it.ProductName,
			ProductVariant: it.VariantName,
			Size:           string(it.Size),
			SKU:            it.SKU,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			LineTotal:      it.LineTotal,
		})
	}
	return models.IntakePayload{
		APIKey:               apiKey,
		OrderNumber:          order.OrderNumber,
		Date:                 order.Timestamp.Format("2006-01-02"),
		Time:                 order.Timestamp.Format("15:04:05"),
		CustomerName:         order.CustomerName,
		CustomerPhone:        order.Contact,
		CustomerAddress:      order.Address,
		Pincode:              order.Pincode,
		TLName:               order.TLName,
		MemberName:           order.MemberName,
		Subtotal:             order.Subtotal,
		Discount:             order.Discount,
		DeliveryFee:          order.Delivery,
		GrandTotal:           order.GrandTotal,
		PaymentMethod:        paymentMethod,
		PaymentScreenshot:    order.PaymentScreenshot,
		PaymentScreenshotURL: order.PaymentScreenshotURL,
		OrderStatus:          initialOrderStatus,
		OrderNote:            order.OrderNote,
		Items:                items,
	}
}
