// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the OS config directory when set. Tests use it
// on hosts where HOME is not honored by os.UserConfigDir.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir.
func SetConfigDirOverride(dir string) { configDirOverride = dir }

// Reset drops the config directory override.
func Reset() { configDirOverride = "" }
