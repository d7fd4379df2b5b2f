// Package web holds the page templates and stylesheet compiled into the
// server binary.
package web

import "embed"

// TemplatesFS holds base.html and one template per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
