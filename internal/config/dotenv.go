package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// loadDotEnv applies a dotenv file to the process environment. A missing file
// is not an error and variables already set are left alone.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	vars, err := parseDotEnv(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, kv := range vars {
		if os.Getenv(kv[0]) != "" {
			continue
		}
		_ = os.Setenv(kv[0], kv[1])
	}
	return nil
}

// parseDotEnv reads KEY=VALUE lines in file order. Blank lines, # comments and
// lines without "=" are skipped; "export " prefixes and one level of matching
// quotes are stripped. Unquoted values lose a trailing " # comment".
func parseDotEnv(r io.Reader) ([][2]string, error) {
	var vars [][2]string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		vars = append(vars, [2]string{k, dotEnvValue(strings.TrimSpace(v))})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vars, nil
}

func dotEnvValue(v string) string {
	if len(v) >= 2 {
		if q := v[0]; (q == '"' || q == '\'') && v[len(v)-1] == q {
			return v[1 : len(v)-1]
		}
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}
