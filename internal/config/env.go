// FILE: env.go
// Package config – Environment helpers and safe .env loading.
//
// Provides small typed getters for environment variables, plus a
// dependency-free .env loader that injects ONLY the keys this engine needs
// into the process environment, ignoring anything else a shared .env file
// might carry (sidecar credentials, unrelated service config, etc).
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

// neededKeys are the only variables LoadEnvFile will import from a .env
// file; anything else in that file (e.g. sidecar credentials) is ignored.
var neededKeys = map[string]struct{}{
	"FOOTPRINT_DATA_ROOT": {}, "FOOTPRINT_SYMBOL": {}, "FOOTPRINT_V_UNIT": {},
	"FOOTPRINT_TICK_SIZE": {}, "FOOTPRINT_BRIDGE_URL": {}, "FOOTPRINT_PORT": {},
	"FOOTPRINT_MICRO_ALPHA": {}, "FOOTPRINT_MICRO_NMIN": {}, "FOOTPRINT_MICRO_NMAX": {},
	"FOOTPRINT_FORCE_RECOMPUTE": {},
}

// LoadEnvFile reads .env from "." and ".." and sets only neededKeys,
// without overriding variables already present in the environment.
func LoadEnvFile() {
	try := func(path string) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := strings.TrimSpace(s.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "export ") {
				line = strings.TrimSpace(line[len("export "):])
			}
			eq := strings.Index(line, "=")
			if eq <= 0 {
				continue
			}
			key := strings.TrimSpace(line[:eq])
			if _, ok := neededKeys[key]; !ok {
				continue
			}
			val := strings.TrimSpace(line[eq+1:])
			if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
				val = val[1 : len(val)-1]
			}
			if idx := strings.IndexAny(val, "#"); idx >= 0 {
				val = strings.TrimSpace(val[:idx])
			}
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, val)
			}
		}
	}
	for _, base := range []string{".", ".."} {
		try(filepath.Join(base, ".env"))
	}
}
