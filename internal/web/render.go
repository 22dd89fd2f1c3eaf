// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/samber/oops"

	"github.com/storefront/storefront/internal/auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

// page is the data every template receives.
type page struct {
	Title   string
	User    *auth.Account
	Message string
}

// credentialsForm feeds the shared login/register form.
type credentialsForm struct {
	Action  string
	Submit  string
	Message string
}

// renderer executes the embedded page templates.
type renderer struct {
	templates *template.Template
}

func newRenderer() (*renderer, error) {
	t, err := template.New("pages").Funcs(template.FuncMap{
		"form": func(action, submit, message string) credentialsForm {
			return credentialsForm{Action: action, Submit: submit, Message: message}
		},
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, oops.Code("WEB_TEMPLATE_PARSE_FAILED").Wrap(err)
	}
	return &renderer{templates: t}, nil
}

// render executes name into a buffer first so a template failure never
// leaves a half-written response.
func (r *renderer) render(w http.ResponseWriter, status int, name string, data page) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return oops.Code("WEB_RENDER_FAILED").With("template", name).Wrap(err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err //nolint:wrapcheck // client write errors are not actionable
}
