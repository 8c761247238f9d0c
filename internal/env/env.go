// Package env loads KEY=VALUE files into the process environment so config
// values such as secrets and DSNs can live outside the TOML file.
package env

import (
	"os"
	"path/filepath"
	"strings"
)

type Var map[string]string

// LoadFile parses a simple .env file: KEY=VALUE lines, no export, no
// quotes. Blank lines and lines starting with # are skipped.
func LoadFile(path string) (Var, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return Parse(string(b)), nil
}

// Parse reads KEY=VALUE lines from s. Entries with an empty key are dropped.
func Parse(s string) Var {
	m := make(Var)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			k := strings.TrimSpace(line[:i])
			if k == "" {
				continue
			}
			m[k] = strings.TrimSpace(line[i+1:])
		}
	}
	return m
}

// Apply sets every variable of every file in order. Variables already in
// the process environment win, and earlier files win over later ones.
// Values may reference ${VAR} from the environment or from the files.
func Apply(paths []string) error {
	pending := make(Var)
	for _, p := range paths {
		vars, err := LoadFile(p)
		if err != nil {
			return err
		}
		for k, v := range vars {
			if _, ok := pending[k]; ok {
				continue
			}
			pending[k] = v
		}
	}

	lookup := func(k string) string {
		if v, ok := os.LookupEnv(k); ok {
			return v
		}
		return pending[k]
	}
	for k, v := range pending {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, expand(v, lookup)); err != nil {
			return err
		}
	}
	return nil
}

// expand replaces ${VAR} references. Bare $VAR is left alone so values
// such as bcrypt hashes pass through untouched. No recursion.
func expand(s string, lookup func(string) string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(lookup(s[i+2 : i+2+j]))
		s = s[i+2+j+1:]
	}
}
