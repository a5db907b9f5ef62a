package util

import "strings"

// ParseEnvs converts a list of "KEY=VALUE" environment entries, as returned by
// os.Environ, into a map.
func ParseEnvs(envs []string) map[string]string {
	out := make(map[string]string, len(envs))

	for _, env := range envs {
		if key, value, ok := strings.Cut(env, "="); ok {
			out[key] = value
		}
	}

	return out
}
