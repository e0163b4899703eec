// Package web holds the embedded templates and static assets for the
// history UI.
package web

import "embed"

//go:embed templates static
var Assets embed.FS
