package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/champaran-pos/internal/cart"
)

// CartCookie names the cookie carrying the cart session id.
const CartCookie = "cart_id"

const cartContextKey = "currentCart"

// CartSession attaches the caller's cart to the request, issuing a new
// session cookie when none (or a malformed one) is presented.
func CartSession(registry *cart.Registry, maxAge time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(CartCookie)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Cookie(&fiber.Cookie{
			Name:     CartCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(maxAge.Seconds()),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		c.Locals(cartContextKey, registry.Get(id))
		return c.Next()
	}
}

// GetCart returns the cart attached by CartSession.
func GetCart(c *fiber.Ctx) (*cart.Store, bool) {
	store, ok := c.Locals(cartContextKey).(*cart.Store)
	return store, ok && store != nil
}
