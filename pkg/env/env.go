// Package env reads raw environment variables for the few settings needed
// before the envconfig-backed configuration is loaded, such as the logger
// output format.
package env

import "os"

// Get returns the named variable, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
