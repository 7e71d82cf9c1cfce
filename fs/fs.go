package appfs

import "embed"

// FS holds the SQL migrations and the email templates.
// The all: prefix keeps the "_" layouts.
//
//go:embed migrations all:templates
var FS embed.FS
