package xdg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName is the directory created under each XDG base directory.
const AppName = "link-install"

const envPrefix = "LINK_INSTALL_"

// GetXDGConfigDir returns $XDG_CONFIG_HOME/link-install/<subpath>, creating it with perm.
// LINK_INSTALL_XDG_CONFIG_HOME takes precedence over XDG_CONFIG_HOME.
func GetXDGConfigDir(subpath string, perm os.FileMode) (string, error) {
	return getXDGDir("XDG_CONFIG_HOME", xdg.ConfigHome, subpath, perm)
}

// GetXDGStateDir returns $XDG_STATE_HOME/link-install/<subpath>, creating it with perm.
// LINK_INSTALL_XDG_STATE_HOME takes precedence over XDG_STATE_HOME.
func GetXDGStateDir(subpath string, perm os.FileMode) (string, error) {
	return getXDGDir("XDG_STATE_HOME", xdg.StateHome, subpath, perm)
}

// GetXDGCacheDir returns $XDG_CACHE_HOME/link-install/<subpath>, creating it with perm.
// LINK_INSTALL_XDG_CACHE_HOME takes precedence over XDG_CACHE_HOME.
func GetXDGCacheDir(subpath string, perm os.FileMode) (string, error) {
	return getXDGDir("XDG_CACHE_HOME", xdg.CacheHome, subpath, perm)
}

// ConfigBase returns the base config directory without creating anything.
func ConfigBase() string {
	return filepath.Join(baseDir("XDG_CONFIG_HOME", xdg.ConfigHome), AppName)
}

func baseDir(envVar, fallback string) string {
	// The library reads the environment once at startup, so the variables are read again here.
	v := viper.New()
	_ = v.BindEnv(envVar, envPrefix+envVar, envVar)
	if custom := v.GetString(envVar); custom != "" {
		return custom
	}
	return fallback
}

func getXDGDir(envVar, fallback, subpath string, perm os.FileMode) (string, error) {
	dir := filepath.Join(baseDir(envVar, fallback), AppName)
	if subpath != "" {
		dir = filepath.Join(dir, subpath)
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}
