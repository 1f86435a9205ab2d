package tools

import (
	"maps"
	"os"
	"os/user"
	"slices"
)

const fallbackPath = "/usr/local/bin:/usr/bin:/bin"

// SafeEnv is the environment given to shell commands when the host
// environment is not inherited: PATH, HOME and extra in key order.
func SafeEnv(extra map[string]string) []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = fallbackPath
	}
	env := []string{"PATH=" + path}
	if home := homeDir(); home != "" {
		env = append(env, "HOME="+home)
	}
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return ""
}
