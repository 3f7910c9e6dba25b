package envoverride

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Environment is the source of environment variables consulted by overrides.
// Environ returns entries in "KEY=value" form, like os.Environ.
type Environment interface {
	Environ() []string
}

type osEnvironment struct{}

func (osEnvironment) Environ() []string { return os.Environ() }

// OS returns the process environment.
func OS() Environment {
	return osEnvironment{}
}

type mapEnvironment map[string]string

func (m mapEnvironment) Environ() []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Map returns a fixed environment backed by vars. Keys are kept verbatim, so
// a map may hold several spellings of the same name.
func Map(vars map[string]string) Environment {
	cp := make(mapEnvironment, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return cp
}

type layeredEnvironment struct {
	base  Environment
	lower map[string]string
}

func (l layeredEnvironment) Environ() []string {
	upper := l.base.Environ()
	seen := make(map[string]struct{}, len(upper))
	for _, kv := range upper {
		if name, _, ok := strings.Cut(kv, "="); ok {
			seen[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(upper)+len(l.lower))
	out = append(out, upper...)

	names := make([]string, 0, len(l.lower))
	for name := range l.lower {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, name+"="+l.lower[name])
	}
	return out
}

// Dotenv reads the given .env files and layers them under the process
// environment. A variable set in the process wins over the same exact name
// in a file. With no paths, ".env" in the working directory is read.
func Dotenv(paths ...string) (Environment, error) {
	vars, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to read env files: %w", err)
	}
	return layeredEnvironment{base: OS(), lower: vars}, nil
}

// entries splits an environment listing into name/value pairs, skipping
// malformed entries.
func entries(env Environment) [][2]string {
	raw := env.Environ()
	out := make([][2]string, 0, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		out = append(out, [2]string{name, value})
	}
	return out
}
