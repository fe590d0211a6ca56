package multipage

import _ "embed"

// Version is the module release, as written in the VERSION file.
//
//go:embed VERSION
var Version string
