package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// layers returns the files that make up a config, from least to most
// prioritized.
//
// 1. <name>.<ext>
// 2. <name>.local.<ext>
func layers(name string) []string {
	ext := filepath.Ext(name)
	prefix := strings.TrimSuffix(name, ext)
	return []string{
		name,
		fmt.Sprintf("%s.local%s", prefix, ext),
	}
}

// ReadConfig reads a json5 configuration file, `name` should come with a file
// extension. Layers that exist are merged over each other, layers that do not
// exist are skipped. If no layer exists os.ErrNotExist is returned.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	for _, path := range layers(name) {
		contents, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return out, err
		}

		var layer T
		err = json5.Unmarshal(contents, &layer)
		if err != nil {
			return out, fmt.Errorf("parse config %s: %w", path, err)
		}
		err = mergo.Merge(&out, layer, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge config %s: %w", path, err)
		}
		if found {
			slog.Info("merging config with local overrides", "local", path)
		}
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig but it goes up the filesystem from the cwd
// until the root to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return defaultOut, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return defaultOut, os.ErrNotExist
		}
		current = parent
	}
}
