package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envOr parses the variable named key, falling back to defaultVal when it is
// unset or does not parse.
func envOr[T any](key string, defaultVal T, parse func(string) (T, error)) T {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	result, err := parse(value)
	if err != nil {
		return defaultVal
	}
	return result
}

func GetEnvAsString(key string, defaultVal string) string {
	return envOr(key, defaultVal, func(v string) (string, error) { return v, nil })
}

func GetEnvAsInt(key string, defaultVal int) int {
	return envOr(key, defaultVal, strconv.Atoi)
}

func GetEnvAsUint64(key string, defaultVal uint64) uint64 {
	return envOr(key, defaultVal, func(v string) (uint64, error) { return strconv.ParseUint(v, 10, 64) })
}

// GetEnvAsDuration accepts Go duration strings such as "90s" or "10m".
func GetEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return envOr(key, defaultVal, time.ParseDuration)
}

func GetEnvAsBool(key string, defaultVal bool) bool {
	return envOr(key, defaultVal, strconv.ParseBool)
}

// GetEnvAsList splits a comma separated variable, dropping blank items.
// defaultVal is split the same way when the variable is unset.
func GetEnvAsList(key string, defaultVal string) []string {
	var out []string
	for _, part := range strings.Split(GetEnvAsString(key, defaultVal), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
