// Package configs embeds the configuration templates written by
// `syncignore config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults
//  2. User config (~/.config/syncignore/config.yaml)
//  3. Project config (.syncignore.yaml in the watch root)
//  4. Explicit --config file
//  5. Environment variables (SYNCIGNORE_*)
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by `syncignore config init` at ~/.config/syncignore/config.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for a watch root's .syncignore.yaml.
// Created by `syncignore config init --project <root>`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
