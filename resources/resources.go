package resources

import "embed"

//go:embed migrations verification
var FS embed.FS
