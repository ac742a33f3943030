// Package view renders the HTML pages of the application from templates
// embedded in the binary.
package view

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates
var templatesFS embed.FS

// Renderer executes the application's page templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates. It panics on a malformed template,
// which can only happen at build time.
func New() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.ParseFS(templatesFS, "templates/*.html")),
	}
}

// UploadPage renders the upload form.
func (r *Renderer) UploadPage(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "upload.html", nil)
}

// ShowPage renders the listing of all videos. data is a slice of records
// with ID, Name and URL fields.
func (r *Renderer) ShowPage(w io.Writer, data interface{}) error {
	return r.tmpl.ExecuteTemplate(w, "show.html", data)
}

// EditPage renders the edit form pre-filled with one record.
func (r *Renderer) EditPage(w io.Writer, data interface{}) error {
	return r.tmpl.ExecuteTemplate(w, "edit.html", data)
}
