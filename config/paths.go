package config

import (
	"os"
	"path/filepath"
)

// Home returns the spiritbox configuration directory.
// Uses $SPIRITBOX_HOME if set, otherwise the OS user config dir.
func Home() string {
	if v := os.Getenv("SPIRITBOX_HOME"); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".spiritbox"
	}
	return filepath.Join(dir, "spiritbox")
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(Home(), "config.yaml")
}

// DotenvPath returns the .env file read for API keys.
func DotenvPath() string {
	return filepath.Join(Home(), ".env")
}
