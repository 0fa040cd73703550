// Package env reads process environment variables with typed fallbacks, for
// the handful of settings (logging, theming) that main needs before the
// config loader has run.
package env

import (
	"os"
	"strconv"
)

// GetEnvOrDefault returns the named environment variable, or def if unset.
func GetEnvOrDefault(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

// GetEnvBoolOrDefault parses the named environment variable as a bool, or
// returns def if unset or unparsable.
func GetEnvBoolOrDefault(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetEnvIntOrDefault parses the named environment variable as an int, or
// returns def if unset or unparsable.
func GetEnvIntOrDefault(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
