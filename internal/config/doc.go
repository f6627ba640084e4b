// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/provar-ci/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/provar-ci/config.cue on macOS, %APPDATA%\provar-ci\config.cue
// on Windows). It registers Provar, JDK and Ant installations, describes execution nodes
// and their tool location overrides, and holds step defaults and agent settings.
//
// Files are validated against an embedded CUE schema (config_schema.cue) before they are
// merged into Viper.
package config
