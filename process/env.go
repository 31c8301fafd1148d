package process

import "os"

// baseEnv is what every child gets from the parent environment, when set.
var baseEnv = []string{"PATH", "HOME", "LANG", "TMPDIR"}

// buildEnv returns the child environment: the base variables plus
// Config.PassEnv taken from the parent, then the request entries. With
// InheritEnv the whole parent environment replaces the base.
func buildEnv(cfg Config, extra []string) []string {
	if cfg.InheritEnv {
		return append(os.Environ(), extra...)
	}

	seen := make(map[string]bool, len(baseEnv)+len(cfg.PassEnv))
	env := make([]string, 0, len(baseEnv)+len(cfg.PassEnv)+len(extra))
	for _, keys := range [][]string{baseEnv, cfg.PassEnv} {
		for _, key := range keys {
			if seen[key] {
				continue
			}
			seen[key] = true
			if v, ok := os.LookupEnv(key); ok {
				env = append(env, key+"="+v)
			}
		}
	}
	return append(env, extra...)
}
