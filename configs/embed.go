// Package configs provides the embedded family-config template used by
// `retrieval config --init`.
//
// The template is embedded at build time with //go:embed so it ships in
// every distribution (source build, binary release) without depending on
// a side-by-side file on disk.
//
// Configuration Hierarchy (see internal/config/config.go):
//  1. Hardcoded defaults (internal/config/config.go Default())
//  2. Family config JSON (path given via `retrieval search --config`)
package configs

import _ "embed"

// FamilyConfigTemplate is the template written by `retrieval config --init`.
// It shows one model family (search collection plus its query/view
// collections) and the pipeline-level fusion and booster settings a
// family config may override.
//
//go:embed family-config.example.json
var FamilyConfigTemplate string
