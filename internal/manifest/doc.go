// Package manifest handles locating, parsing, and validating the hdlenv
// workspace manifest.
//
// The manifest declares what a development workspace looks like: the
// repositories cloned next to the host checkout, the Python packages
// installed from them (in order), hook registration, and the optional
// Docker sandbox. When no manifest file exists, the built-in default
// reproduces the Hdl21 bootstrap sequence exactly.
//
// Manifests are JSONC (JSON with Comments) documents, parsed via
// github.com/tidwall/jsonc before the standard encoding/json sees them,
// matching the common practice of commenting configuration files.
//
// Search order within the host repository root:
//  1. .hdlenv/config.json
//  2. .hdlenv.json
package manifest
