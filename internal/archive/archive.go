// Package archive keeps a local record of every order built at checkout.
package archive

import (
	"context"

	"github.com/pkg/errors"

	"github.com/example/champaran-pos/internal/models"
)

var (
	// ErrNotFound is returned for an unknown order number.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateOrder is returned when an order number is archived twice.
	ErrDuplicateOrder = errors.New("order number already archived")
)

// Archive is the local source of truth for invoices and order history.
type Archive interface {
	Append(ctx context.Context, order models.Order) error
	All(ctx context.Context) ([]models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (models.Order, error)
}

// DeliveryLog tracks how archived orders fared at the remote intake.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, orderNumber string, status models.DeliveryStatus) error
	Delivery(ctx context.Context, orderNumber string) (models.DeliveryStatus, error)
}

// ProofStash keeps payment screenshots that could not be uploaded.
type ProofStash interface {
	StoreProof(ctx context.Context, orderNumber string, proof models.StoredProof) error
	Proof(ctx context.Context, orderNumber string) (models.StoredProof, error)
}
