package bridge

import _ "embed"

// Version is the release of this module. It may carry a trailing newline.
//
//go:embed VERSION
var Version string
