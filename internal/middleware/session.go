package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shipgl/vendor-bootstrap/internal/auth"
	"github.com/shipgl/vendor-bootstrap/internal/vendor"
)

const vendorLocal = "vendor"

// Session resolves the portal session cookie into the current vendor. Requests
// without a valid session continue anonymously.
func Session(sessions *auth.Sessions, vendors *vendor.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(auth.CookieName)
		if token == "" {
			return c.Next()
		}
		id, err := sessions.Verify(token)
		if err != nil {
			c.ClearCookie(auth.CookieName)
			return c.Next()
		}
		v, err := vendors.Get(c.UserContext(), id)
		if err != nil {
			c.ClearCookie(auth.CookieName)
			return c.Next()
		}
		c.Locals(vendorLocal, v)
		return c.Next()
	}
}

// RequireVendor redirects anonymous requests to loginPath.
func RequireVendor(loginPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentVendor(c); !ok {
			return c.Redirect(loginPath, fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// CurrentVendor returns the vendor attached by Session.
func CurrentVendor(c *fiber.Ctx) (vendor.Vendor, bool) {
	v, ok := c.Locals(vendorLocal).(vendor.Vendor)
	return v, ok
}
