package checkout

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultOrderPrefix starts every order number unless configured otherwise.
const DefaultOrderPrefix = "MC"

// GenerateOrderNumber returns prefix-yyyyMMdd-HHmmss-XXXXXXXXXXXX. The suffix
// is 48 random bits, so numbers from the same second collide with negligible
// probability.
func GenerateOrderNumber(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultOrderPrefix
	}
	id := uuid.New()
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[20:])
	return prefix + "-" + now.Format("20060102") + "-" + now.Format("150405") + "-" + suffix
}
