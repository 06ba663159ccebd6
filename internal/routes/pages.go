package routes

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"github.com/shipgl/vendor-bootstrap/internal/vendor"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Title  string
	Error  string
	Path   string
	Vendor *vendor.Vendor
	Form   formValues
}

type formValues struct {
	FirstName string
	LastName  string
	Mobile    string
	Email     string
}

func render(c *fiber.Ctx, status int, name string, data pageData) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}
