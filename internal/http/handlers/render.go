package handlers

import (
	"embed"
	"io/fs"
	"net/http"

	"tradepost/internal/format"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// Views returns the html engine over the embedded templates.
func Views() *html.Engine {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("money", format.Money)
	engine.AddFunc("date", format.Date)
	return engine
}

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if id := userID(c); id != "" {
		data["UserID"] = id
	}
	return c.Render(tmpl, data)
}
