package middleware

import (
	"crypto/subtle"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/example/champaran-pos/internal/models"
)

// APIKeyHeader carries the intake key on back-office requests.
const APIKeyHeader = "X-API-Key"

type apiKeyBody struct {
	APIKey string `json:"apiKey"`
}

// IntakeAuth checks the shared intake key. The key may come in the
// X-API-Key header, the apiKey query parameter or the apiKey JSON field.
func IntakeAuth(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		presented := c.Get(APIKeyHeader)
		if presented == "" {
			presented = c.Query("apiKey")
		}
		if presented == "" && len(c.Body()) > 0 {
			var body apiKeyBody
			_ = json.Unmarshal(c.Body(), &body)
			presented = body.APIKey
		}

		if apiKey == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			return writeIntakeAuthError(c)
		}
		return c.Next()
	}
}

func writeIntakeAuthError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.IntakeResponse{
		Status:  models.IntakeStatusError,
		Message: "Unauthorized: invalid apiKey",
	})
}
