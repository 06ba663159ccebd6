package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/shipgl/vendor-bootstrap/internal/auth"
	"github.com/shipgl/vendor-bootstrap/internal/middleware"
	"github.com/shipgl/vendor-bootstrap/internal/portal"
	"github.com/shipgl/vendor-bootstrap/internal/vendor"
)

type portalHandler struct {
	vendors  *vendor.Service
	sessions *auth.Sessions
	logger   *slog.Logger
}

// RegisterPortalRoutes wires the vendor portal pages.
func RegisterPortalRoutes(r fiber.Router, vendors *vendor.Service, sessions *auth.Sessions, rateLimiter fiber.Handler, logger *slog.Logger) {
	h := &portalHandler{vendors: vendors, sessions: sessions, logger: logger}
	requireVendor := middleware.RequireVendor(portal.LoginPath)

	r.Get("/", func(c *fiber.Ctx) error { return c.Redirect(portal.DashboardPath, fiber.StatusSeeOther) })

	r.Get(portal.SignupPath, h.signupForm)
	r.Post(portal.SignupPath, h.signup)

	r.Get(portal.LoginPath, h.loginForm)
	if rateLimiter != nil {
		r.Post(portal.LoginPath, rateLimiter, h.login)
	} else {
		r.Post(portal.LoginPath, h.login)
	}
	r.Get(portal.LogoutPath, h.logout)

	r.Get(portal.VerifyMobilePath, requireVendor, h.verifyForm)
	r.Post(portal.VerifyMobilePath, requireVendor, h.verify)

	r.Get(portal.DashboardPath, requireVendor, h.area("Dashboard"))
	r.Get(portal.OrdersPath, requireVendor, h.area("Orders"))
	r.Post("/agreement/accept", requireVendor, h.acceptAgreement)
}

func (h *portalHandler) signupForm(c *fiber.Ctx) error {
	return render(c, http.StatusOK, "signup", pageData{Title: "Sign Up"})
}

// signup copies the form values: fiber reuses the request buffer they point
// into, and the vendor record outlives the request.
func (h *portalHandler) signup(c *fiber.Ctx) error {
	in := vendor.SignupInput{
		FirstName:       utils.CopyString(c.FormValue("firstName")),
		LastName:        utils.CopyString(c.FormValue("lastName")),
		Mobile:          utils.CopyString(c.FormValue("mobile")),
		Email:           utils.CopyString(c.FormValue("email")),
		Password:        c.FormValue("password"),
		ConfirmPassword: c.FormValue("confirmPassword"),
		AcceptedTerms:   c.FormValue("toc") != "",
	}
	v, err := h.vendors.Register(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, vendor.ErrInvalidSignup) || errors.Is(err, vendor.ErrEmailTaken) {
			return render(c, http.StatusUnprocessableEntity, "signup", pageData{
				Title: "Sign Up",
				Error: err.Error(),
				Form:  formValues{FirstName: in.FirstName, LastName: in.LastName, Mobile: in.Mobile, Email: in.Email},
			})
		}
		return err
	}
	h.logger.Info("vendor.signup completed", slog.String("vendor_id", v.ID), slog.String("email", v.Email))

	if err := h.startSession(c, v); err != nil {
		return err
	}
	return c.Redirect(portal.VerifyMobilePath, fiber.StatusSeeOther)
}

func (h *portalHandler) loginForm(c *fiber.Ctx) error {
	return render(c, http.StatusOK, "login", pageData{Title: "Sign In"})
}

func (h *portalHandler) login(c *fiber.Ctx) error {
	email := c.FormValue("email")
	v, err := h.vendors.Authenticate(c.UserContext(), email, c.FormValue("password"))
	if err != nil {
		if errors.Is(err, vendor.ErrInvalidCredentials) {
			return render(c, http.StatusUnauthorized, "login", pageData{
				Title: "Sign In",
				Error: err.Error(),
				Form:  formValues{Email: email},
			})
		}
		return err
	}
	if err := h.startSession(c, v); err != nil {
		return err
	}
	if !v.MobileVerified {
		if err := h.vendors.SendOTP(c.UserContext(), v); err != nil {
			return err
		}
		return c.Redirect(portal.VerifyMobilePath, fiber.StatusSeeOther)
	}
	return c.Redirect(portal.DashboardPath, fiber.StatusSeeOther)
}

func (h *portalHandler) logout(c *fiber.Ctx) error {
	c.ClearCookie(auth.CookieName)
	return c.Redirect(portal.LoginPath, fiber.StatusSeeOther)
}

func (h *portalHandler) verifyForm(c *fiber.Ctx) error {
	v, _ := middleware.CurrentVendor(c)
	if v.MobileVerified {
		return c.Redirect(portal.DashboardPath, fiber.StatusSeeOther)
	}
	return render(c, http.StatusOK, "verify_mobile", pageData{Title: "Verify Mobile", Vendor: &v})
}

func (h *portalHandler) verify(c *fiber.Ctx) error {
	v, _ := middleware.CurrentVendor(c)
	if err := h.vendors.VerifyOTP(c.UserContext(), v.ID, c.FormValue("otp")); err != nil {
		if errors.Is(err, vendor.ErrInvalidOTP) {
			return render(c, http.StatusUnprocessableEntity, "verify_mobile", pageData{Title: "Verify Mobile", Error: err.Error(), Vendor: &v})
		}
		return err
	}
	return c.Redirect(portal.DashboardPath, fiber.StatusSeeOther)
}

// area renders a page of the authenticated area. The merchant agreement
// overlays it until accepted.
func (h *portalHandler) area(title string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, _ := middleware.CurrentVendor(c)
		if !v.MobileVerified {
			return c.Redirect(portal.VerifyMobilePath, fiber.StatusSeeOther)
		}
		return render(c, http.StatusOK, "area", pageData{Title: title, Path: c.Path(), Vendor: &v})
	}
}

func (h *portalHandler) acceptAgreement(c *fiber.Ctx) error {
	v, _ := middleware.CurrentVendor(c)
	if err := h.vendors.AcceptAgreement(c.UserContext(), v.ID); err != nil {
		return err
	}
	h.logger.Info("vendor.agreement accepted", slog.String("vendor_id", v.ID))

	next := c.FormValue("next")
	if next != portal.OrdersPath {
		next = portal.DashboardPath
	}
	return c.Redirect(next, fiber.StatusSeeOther)
}

func (h *portalHandler) startSession(c *fiber.Ctx, v vendor.Vendor) error {
	token, err := h.sessions.Issue(v.ID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.sessions.TTL()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}
