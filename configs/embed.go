// Package configs embeds the annotated configuration templates written by
// `docindex config init`.
package configs

import _ "embed"

// UserConfigTemplate is written to the user config path.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written to .docindex.yaml with --project.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
