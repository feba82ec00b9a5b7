package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a finalized checkout. It is never mutated after it is archived.
type Order struct {
	OrderNumber string `json:"order_number"`
	// SessionID is the cart session that placed the order. Only that
	// session can read the order back over HTTP.
	SessionID   string `json:"session_id,omitempty"`

	CustomerName string `json:"customer_name"`
	Address      string `json:"address"`
	Pincode      string `json:"pincode"`
	Contact      string `json:"contact"`
	TLName       string `json:"tl_name"`
	MemberName   string `json:"member_name"`
	OrderNote    string `json:"order_note,omitempty"`

	Subtotal     int64           `json:"subtotal"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	Discount     int64           `json:"discount"`
	Delivery     int64           `json:"delivery"`
	GrandTotal   int64           `json:"grand_total"`

	// PaymentScreenshotURL is set only when the proof reached an image store.
	PaymentScreenshotURL string `json:"payment_screenshot_url,omitempty"`
	// PaymentScreenshot is the reference sent to order intake: the URL or a placeholder.
	PaymentScreenshot string `json:"payment_screenshot"`

	Items     []LineItem `json:"items"`
	Timestamp time.Time  `json:"timestamp"`
}

// DeliveryOutcome is the result of handing an order to the remote intake.
type DeliveryOutcome string

const (
	DeliveryConfirmed   DeliveryOutcome = "confirmed"
	DeliveryUnconfirmed DeliveryOutcome = "unconfirmed"
	DeliveryFailed      DeliveryOutcome = "failed"
)

// DeliveryStatus records how an archived order was (or was not) delivered.
type DeliveryStatus struct {
	Outcome   DeliveryOutcome `json:"outcome"`
	Transport string          `json:"transport,omitempty"`
	Error     string          `json:"error,omitempty"`
	At        time.Time       `json:"at"`
}

// Submitted reports whether some transport accepted the order without error.
func (d DeliveryStatus) Submitted() bool {
	return d.Outcome == DeliveryConfirmed || d.Outcome == DeliveryUnconfirmed
}

// StoredProof is a payment screenshot kept locally after its upload failed.
type StoredProof struct {
	FileName string    `json:"file_name"`
	MimeType string    `json:"mime_type"`
	Data     []byte    `json:"data"`
	StoredAt time.Time `json:"stored_at"`
}
