package ui

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Document wraps trusted HTML, such as rendered markdown, in a minimal page.
func Document(appName, title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+templ.EscapeString(title)+` | `+templ.EscapeString(appName)+`</title></head>`+
			`<body><main class="prose"><h1>`+templ.EscapeString(title)+`</h1>`)
		if err != nil {
			return err
		}

		err = templ.Raw(body).Render(ctx, w)
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// WantsJSON reports whether the client asked for JSON rather than HTML.
func WantsJSON(accept string) bool {
	return strings.Contains(accept, "application/json") || !strings.Contains(accept, "text/html")
}
