package models

import (
	"strings"

	"github.com/google/uuid"
)

// Order statuses tracked by the intake back office.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusDispatched = "dispatched"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// ValidStatus reports whether status is a known intake order status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusDispatched, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// OrderRecord is an order received by the intake endpoint.
type OrderRecord struct {
	BaseModel
	OrderNumber          string            `gorm:"uniqueIndex" json:"order_number"`
	OrderDate            string            `json:"order_date"`
	OrderTime            string            `json:"order_time"`
	CustomerName         string            `json:"customer_name"`
	CustomerPhone        string            `json:"customer_phone"`
	CustomerAddress      string            `json:"customer_address"`
	Pincode              string            `json:"pincode"`
	TLName               string            `json:"tl_name"`
	MemberName           string            `json:"member_name"`
	Subtotal             int64             `json:"subtotal"`
	Discount             int64             `json:"discount"`
	DeliveryFee          int64             `json:"delivery_fee"`
	GrandTotal           int64             `json:"grand_total"`
	PaymentMethod        string            `json:"payment_method"`
	PaymentScreenshot    string            `json:"payment_screenshot"`
	PaymentScreenshotURL string            `json:"payment_screenshot_url"`
	Status               string            `gorm:"index" json:"status"`
	Note                 string            `json:"note"`
	Items                []OrderItemRecord `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName keeps the table name stable.
func (OrderRecord) TableName() string { return "orders" }

type OrderItemRecord struct {
	BaseModel
	OrderID        uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ProductName    string    `json:"product_name"`
	ProductVariant string    `json:"product_variant"`
	Size           string    `json:"size"`
	SKU            string    `json:"sku"`
	Quantity       int       `json:"quantity"`
	UnitPrice      int64     `json:"unit_price"`
	LineTotal      int64     `json:"line_total"`
}

func (OrderItemRecord) TableName() string { return "order_items" }

// NewOrderRecord maps an intake payload onto a storable record.
func NewOrderRecord(p IntakePayload) OrderRecord {
	status := strings.ToLower(strings.TrimSpace(p.OrderStatus))
	if !ValidStatus(status) {
		status = StatusPending
	}

	rec := OrderRecord{
		OrderNumber:          p.OrderNumber,
		OrderDate:            p.Date,
		OrderTime:            p.Time,
		CustomerName:         p.CustomerName,
		CustomerPhone:        p.CustomerPhone,
		CustomerAddress:      p.CustomerAddress,
		Pincode:              p.Pincode,
		TLName:               p.TLName,
		MemberName:           p.MemberName,
		Subtotal:             p.Subtotal,
		Discount:             p.Discount,
		DeliveryFee:          p.DeliveryFee,
		GrandTotal:           p.GrandTotal,
		PaymentMethod:        p.PaymentMethod,
		PaymentScreenshot:    p.PaymentScreenshot,
		PaymentScreenshotURL: p.PaymentScreenshotURL,
		Status:               status,
		Note:                 p.OrderNote,
	}
	for _, it := range p.Items {
		rec.Items = append(rec.Items, OrderItemRecord{
			ProductName:    it.ProductName,
			ProductVariant: it.ProductVariant,
			Size:           it.Size,
			SKU:            it.SKU,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			LineTotal:      it.LineTotal,
		})
	}
	return rec
}
