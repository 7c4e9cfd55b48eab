package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envCSV(key string) []string {
	raw := envString(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolEnv(key string) (bool, bool) {
	switch strings.ToLower(envString(key)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func envBoolWithFallback(key string, fallback bool) bool {
	if v, ok := parseBoolEnv(key); ok {
		return v
	}
	return fallback
}

func envIntWithFallback(key string, fallback int) int {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64WithFallback(key string, fallback int64) int64 {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// envDurationWithFallback accepts Go durations ("15m") or plain milliseconds.
func envDurationWithFallback(key string, fallback time.Duration) time.Duration {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func isTestEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "test", "testing":
		return true
	default:
		return false
	}
}
