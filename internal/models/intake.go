package models

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// IntakeItem is one order line as sent to the order-intake endpoint.
type IntakeItem struct {
	ProductName    string `json:"productName"`
	ProductVariant string `json:"productVariant"`
	Size           string `json:"size"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	UnitPrice      int64  `json:"unitPrice"`
	LineTotal      int64  `json:"lineTotal"`
}

// IntakePayload is the document accepted by the order-intake endpoint.
type IntakePayload struct {
	APIKey               string       `json:"apiKey"`
	OrderNumber          string       `json:"orderNumber"`
	Date                 string       `json:"date"`
	Time                 string       `json:"time"`
	CustomerName         string       `json:"customerName"`
	CustomerPhone        string       `json:"customerPhone"`
	CustomerAddress      string       `json:"customerAddress"`
	Pincode              string       `json:"pincode"`
	TLName               string       `json:"tlName"`
	MemberName           string       `json:"memberName"`
	Subtotal             int64        `json:"subtotal"`
	Discount             int64        `json:"discount"`
	DeliveryFee          int64        `json:"deliveryFee"`
	GrandTotal           int64        `json:"grandTotal"`
	PaymentMethod        string       `json:"paymentMethod"`
	PaymentScreenshot    string       `json:"paymentScreenshot"`
	PaymentScreenshotURL string       `json:"paymentScreenshotUrl"`
	OrderStatus          string       `json:"orderStatus"`
	OrderNote            string       `json:"orderNote"`
	Items                []IntakeItem `json:"items"`
}

// ItemsDataField carries the JSON-encoded item list in query-string submissions.
const ItemsDataField = "itemsData"

// Query flattens the payload into query parameters. Items travel as a single
// JSON field to keep the URL short.
func (p IntakePayload) Query() (url.Values, error) {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return nil, errors.Wrap(err, "encode items")
	}

	q := url.Values{}
	q.Set("apiKey", p.APIKey)
	q.Set("orderNumber", p.OrderNumber)
	q.Set("date", p.Date)
	q.Set("time", p.Time)
	q.Set("customerName", p.CustomerName)
	q.Set("customerPhone", p.CustomerPhone)
	q.Set("customerAddress", p.CustomerAddress)
	q.Set("pincode", p.Pincode)
	q.Set("tlName", p.TLName)
	q.Set("memberName", p.MemberName)
	q.Set("subtotal", strconv.FormatInt(p.Subtotal, 10))
	q.Set("discount", strconv.FormatInt(p.Discount, 10))
	q.Set("deliveryFee", strconv.FormatInt(p.DeliveryFee, 10))
	q.Set("grandTotal", strconv.FormatInt(p.GrandTotal, 10))
	q.Set("paymentMethod", p.PaymentMethod)
	q.Set("paymentScreenshot", p.PaymentScreenshot)
	q.Set("paymentScreenshotUrl", p.PaymentScreenshotURL)
	q.Set("orderStatus", p.OrderStatus)
	q.Set("orderNote", p.OrderNote)
	q.Set(ItemsDataField, string(items))
	return q, nil
}

// IntakePayloadFromQuery is the inverse of Query.
func IntakePayloadFromQuery(q url.Values) (IntakePayload, error) {
	p := IntakePayload{
		APIKey:               q.Get("apiKey"),
		OrderNumber:          q.Get("orderNumber"),
		Date:                 q.Get("date"),
		Time:                 q.Get("time"),
		CustomerName:         q.Get("customerName"),
		CustomerPhone:        q.Get("customerPhone"),
		CustomerAddress:      q.Get("customerAddress"),
		Pincode:              q.Get("pincode"),
		TLName:               q.Get("tlName"),
		MemberName:           q.Get("memberName"),
		PaymentMethod:        q.Get("paymentMethod"),
		PaymentScreenshot:    q.Get("paymentScreenshot"),
		PaymentScreenshotURL: q.Get("paymentScreenshotUrl"),
		OrderStatus:          q.Get("orderStatus"),
		OrderNote:            q.Get("orderNote"),
	}

	amounts := []struct {
		key string
		dst *int64
	}{
		{"subtotal", &p.Subtotal},
		{"discount", &p.Discount},
		{"deliveryFee", &p.DeliveryFee},
		{"grandTotal", &p.GrandTotal},
	}
	for _, a := range amounts {
		raw := q.Get(a.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return p, errors.Wrapf(err, "parse %s", a.key)
		}
		*a.dst = v
	}

	if raw := q.Get(ItemsDataField); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Items); err != nil {
			return p, errors.Wrap(err, "decode itemsData")
		}
	}
	return p, nil
}

// IntakeResponse is the envelope returned by the order-intake endpoint.
type IntakeResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

// Intake response statuses.
const (
	IntakeStatusSuccess = "success"
	IntakeStatusError   = "error"
)
