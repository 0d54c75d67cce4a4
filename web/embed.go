package web

import "embed"

// Static embeds the single-page application shell and its assets.
//
//go:embed static
var Static embed.FS
