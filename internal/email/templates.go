package email

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Los cuerpos se escriben en Markdown y se convierten a HTML con goldmark. El
// HTML crudo dentro del Markdown se descarta, asi que un nombre de usuario no
// puede inyectar marcado.
var (
	markdownOnce     sync.Once
	markdownRenderer goldmark.Markdown
)

func renderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.Linkify))
	})
	return markdownRenderer
}

var (
	resetTemplate = template.Must(template.New("reset").Parse(`# Restablecer contraseña

Hola {{.Name}},

Recibimos un pedido para restablecer tu contraseña. Usa este enlace antes de {{.ExpiresAt}} UTC:

[Restablecer contraseña](<{{.Link}}>)

Si no fuiste tu, ignora este correo. Tu contraseña actual sigue funcionando.
`))

	confirmTemplate = template.Must(template.New("confirm").Parse(`# Confirma tu correo

Hola {{.Name}},

Para confirmar esta direccion abre el siguiente enlace antes de {{.ExpiresAt}} UTC:

[Confirmar correo](<{{.Link}}>)
`))

	testTemplate = template.Must(template.New("test").Parse(`# Correo de prueba

La configuracion SMTP funciona. Enviado el {{.SentAt}} UTC.
`))
)

// Rendered es un correo listo para Sender.Send.
type Rendered struct {
	Subject string
	HTML    string
}

// LinkData alimenta los templates de reset y confirmacion.
type LinkData struct {
	Name      string
	Link      string
	ExpiresAt time.Time
}

func RenderReset(data LinkData) (Rendered, error) {
	return render(resetTemplate, "Restablecer contraseña", linkFields(data))
}

func RenderConfirmation(data LinkData) (Rendered, error) {
	return render(confirmTemplate, "Confirma tu correo", linkFields(data))
}

func RenderTest(sentAt time.Time) (Rendered, error) {
	return render(testTemplate, "Correo de prueba", map[string]string{
		"SentAt": sentAt.UTC().Format(time.RFC3339),
	})
}

func linkFields(data LinkData) map[string]string {
	return map[string]string{
		"Name":      data.Name,
		"Link":      data.Link,
		"ExpiresAt": data.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func render(tmpl *template.Template, subject string, fields map[string]string) (Rendered, error) {
	var md bytes.Buffer
	if err := tmpl.Execute(&md, fields); err != nil {
		return Rendered{}, fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}
	var html bytes.Buffer
	if err := renderer().Convert(md.Bytes(), &html); err != nil {
		return Rendered{}, fmt.Errorf("convert %s markdown: %w", tmpl.Name(), err)
	}
	return Rendered{Subject: subject, HTML: html.String()}, nil
}
