package osx

import "os"

// GetEnv returns the value of the environment variable key,
// or defaultValue if the variable is unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
