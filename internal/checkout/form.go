package checkout

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/example/champaran-pos/internal/upload"
)

var (
	pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)
	contactPattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// Form is the customer section of the checkout page.
type Form struct {
	CustomerName string `json:"customerName" form:"customerName"`
	Address      string `json:"address" form:"address"`
	Pincode      string `json:"pincode" form:"pincode"`
	Contact      string `json:"contact" form:"contact"`
	TLName       string `json:"tlName" form:"tlName"`
	MemberName   string `json:"memberName" form:"memberName"`
	OrderNote    string `json:"orderNote" form:"orderNote"`
}

// Normalize trims surrounding whitespace from every field.
func (f Form) Normalize() Form {
	return Form{
		CustomerName: strings.TrimSpace(f.CustomerName),
		Address:      strings.TrimSpace(f.Address),
		Pincode:      strings.TrimSpace(f.Pincode),
		Contact:      strings.TrimSpace(f.Contact),
		TLName:       strings.TrimSpace(f.TLName),
		MemberName:   strings.TrimSpace(f.MemberName),
		OrderNote:    strings.TrimSpace(f.OrderNote),
	}
}

// Field names used as ValidationError keys.
const (
	FieldCustomerName      = "customerName"
	FieldAddress           = "address"
	FieldPincode           = "pincode"
	FieldContact           = "contact"
	FieldTLName            = "tlName"
	FieldMemberName        = "memberName"
	FieldPaymentScreenshot = "paymentScreenshot"
	FieldCart              = "cart"
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ProofPolicy controls what payment screenshots are accepted.
type ProofPolicy struct {
	Required bool
	MaxBytes int64
}

// Validate checks the form, the attached proof and the cart size. It returns
// nil or a *ValidationError listing every problem at once.
func Validate(f Form, proof *upload.Image, policy ProofPolicy, cartLen int) error {
	errs := map[string]string{}

	if f.CustomerName == "" {
		errs[FieldCustomerName] = "Customer name is required"
	}
	if f.Address == "" {
		errs[FieldAddress] = "Address is required"
	}
	switch {
	case f.Pincode == "":
		errs[FieldPincode] = "Pincode is required"
	case !pincodePattern.MatchString(f.Pincode):
		errs[FieldPincode] = "Pincode must be 6 digits"
	}
	switch {
	case f.Contact == "":
		errs[FieldContact] = "Contact number is required"
	case !contactPattern.MatchString(f.Contact):
		errs[FieldContact] = "Contact must be 10 digits"
	}
	if f.TLName == "" {
		errs[FieldTLName] = "TL name is required"
	}
	if f.MemberName == "" {
		errs[FieldMemberName] = "Member name is required"
	}

	switch {
	case proof == nil || len(proof.Data) == 0:
		if policy.Required {
			errs[FieldPaymentScreenshot] = "Payment screenshot is required"
		}
	case !strings.HasPrefix(proof.MimeType, "image/"):
		errs[FieldPaymentScreenshot] = "Please select a valid image file"
	case policy.MaxBytes > 0 && int64(len(proof.Data)) > policy.MaxBytes:
		errs[FieldPaymentScreenshot] = "Image file size must be less than " + sizeLabel(policy.MaxBytes)
	}

	if cartLen == 0 {
		errs[FieldCart] = "Cart is empty"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
