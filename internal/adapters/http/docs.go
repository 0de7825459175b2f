package http

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/kabina/kabinaview/internal/core/usecases"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>kabinaview API: Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// DefaultSpecPath is where the OpenAPI document is read from, relative to
// the working directory.
const DefaultSpecPath = "api/openapi.yaml"

// KeyBinding documents one accepted input.
type KeyBinding struct {
	Key     string `json:"key"`
	Code    *int   `json:"code,omitempty"`
	Shift   bool   `json:"shift,omitempty"`
	Command string `json:"command"`
}

func code(c int) *int { return &c }

// KeyBindings lists the browser keys and legacy codes the command endpoint
// and the websocket accept.
var KeyBindings = []KeyBinding{
	{Key: "ArrowUp", Code: code(legacyUp), Command: "pan_up"},
	{Key: "ArrowDown", Code: code(legacyDown), Command: "pan_down"},
	{Key: "ArrowLeft", Code: code(legacyLeft), Command: "pan_left"},
	{Key: "ArrowRight", Code: code(legacyRight), Command: "pan_right"},
	{Key: "ArrowUp", Shift: true, Command: "prev_route"},
	{Key: "ArrowDown", Shift: true, Command: "next_route"},
	{Key: "PageUp", Command: "prev_route"},
	{Key: "PageDown", Command: "next_route"},
	{Key: "+", Code: code(legacyPlus), Command: "zoom_in"},
	{Key: "-", Code: code(legacyMinus), Command: "zoom_out"},
	{Key: "1", Code: code(legacyOne), Command: "view_order"},
	{Key: "2", Code: code(legacyTwo), Command: "view_cab"},
	{Key: "3", Code: code(legacyThree), Command: "view_stop"},
	{Key: " ", Code: code(legacySpace), Command: "refresh"},
	{Key: "h", Code: code(legacyH), Command: "help"},
	{Key: "Escape", Code: code(legacyEsc), Command: "quit"},
}

// SetupDocs registers Swagger UI at /docs, the raw OpenAPI spec at
// /docs/openapi.yaml and the key reference at /docs/keys.
func SetupDocs(app *fiber.App) {
	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		data, err := os.ReadFile(DefaultSpecPath)
		if err != nil {
			return errNotFound(c, "openapi.yaml not found")
		}
		c.Set("Content-Type", "application/yaml")
		return c.Send(data)
	})

	app.Get("/docs/keys", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"bindings": KeyBindings,
			"help":     usecases.HelpLines,
		})
	})
}
