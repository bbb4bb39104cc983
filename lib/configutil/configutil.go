package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LoadDotenv loads a .env file next to the config into the process environment,
// variables that are already set are not overwritten. A missing file is not an error.
func LoadDotenv(dir string) error {
	path := filepath.Join(dir, ".env")
	err := godotenv.Load(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func decode[T any](contents []byte, out *T) error {
	expanded := os.ExpandEnv(string(contents))
	return json5.Unmarshal([]byte(expanded), out)
}

// Layers lists the files ReadConfig merges for name, lowest priority first:
// <name>.<ext> followed by <name>.local.<ext>.
func Layers(name string) []string {
	prefix, ext := splitExt(filepath.Base(name))
	local := prefix + ".local"
	if ext != "" {
		local += "." + ext
	}
	return []string{name, filepath.Join(filepath.Dir(name), local)}
}

// ReadConfig decodes every existing layer of name and merges them, later
// layers override non-zero values of earlier ones. ${VAR} references are
// expanded from the environment. os.ErrNotExist is returned when no layer
// exists at all.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	for i, path := range Layers(name) {
		contents, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return out, err
		}
		if len(contents) == 0 {
			continue
		}

		var layer T
		err = decode(contents, &layer)
		if err != nil {
			return out, fmt.Errorf("decode %s: %w", path, err)
		}
		err = mergo.Merge(&out, layer, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge %s: %w", path, err)
		}
		if i > 0 {
			slog.Info("merging config with local overrides", "local", path)
		}
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}
