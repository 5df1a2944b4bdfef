package session

import "os"

// Resolve picks the profile name: explicit flag wins, then the
// LUME_PROFILE environment variable, then the config default, then
// "default".
func Resolve(flagValue, configDefault string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("LUME_PROFILE"); env != "" {
		return env
	}
	if configDefault != "" {
		return configDefault
	}
	return "default"
}
