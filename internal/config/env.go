package config

import (
	"sort"
)

// DefaultPreviewEnv is set for every preview server unless overridden in
// [preview.env]. Colour codes in the log only get in the way of the
// readiness patterns.
var DefaultPreviewEnv = map[string]string{
	"NO_COLOR": "1",
}

// PreviewEnv returns the variables added to the preview server's inherited
// environment, as sorted "K=V" strings. An empty value in [preview.env]
// removes a default instead of setting it empty.
func PreviewEnv(p PreviewConfig) []string {
	env := MergeEnv(DefaultPreviewEnv, p.Env)
	var drop []string
	for k, v := range p.Env {
		if v == "" {
			drop = append(drop, k)
		}
	}
	return EnvToSlice(WithoutEnv(env, drop...))
}

// MergeEnv merges multiple environment maps, with later maps taking precedence.
func MergeEnv(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// WithoutEnv returns a new map without the specified keys.
func WithoutEnv(env map[string]string, keys ...string) map[string]string {
	result := make(map[string]string)
	exclude := make(map[string]bool)
	for _, k := range keys {
		exclude[k] = true
	}
	for k, v := range env {
		if !exclude[k] {
			result[k] = v
		}
	}
	return result
}

// EnvToSlice converts an env map to "K=V" strings sorted by key.
func EnvToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(env))
	for _, k := range keys {
		result = append(result, k+"="+env[k])
	}
	return result
}
