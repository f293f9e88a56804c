// Manage supports the `lyricsync config {show|set|get|keys|path|reset}` CLI
// surface (§6) directly on top of koanf's own Get/Set/Marshal, rather than
// hand-rolling a second configuration representation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Path returns the config file this process would write to: the first
// existing search path, or the last (working-directory) candidate if none
// exist yet.
func Path() string {
	paths := configPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return paths[len(paths)-1]
}

// Keys lists every recognized koanf key, including nested ones
// (e.g. "watch.debounce_seconds"), derived from the Config struct's tags so
// the CLI's `config keys` output never drifts from the real schema.
func Keys() []string {
	var keys []string
	walkKeys(reflect.TypeOf(Config{}), "", &keys)
	sort.Strings(keys)
	return keys
}

func walkKeys(t reflect.Type, prefix string, out *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			walkKeys(f.Type, key, out)
			continue
		}
		*out = append(*out, key)
	}
}

// loadKoanf builds a koanf instance over the resolved config file, without
// unmarshaling into Config — used by Get/Set/Show which operate on raw keys.
func loadKoanf() (*koanf.Koanf, string, error) {
	path := Path()
	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, "", err
		}
	}
	return k, path, nil
}

// Get returns the string representation of key's current value, or
// ("", false) if unset.
func Get(key string) (string, bool) {
	k, _, err := loadKoanf()
	if err != nil || !k.Exists(key) {
		return "", false
	}
	return fmt.Sprintf("%v", k.Get(key)), true
}

// Set parses value as bool/int/float where possible, falling back to a raw
// string, writes it under key, and persists the config file as TOML.
func Set(key, value string) error {
	k, path, err := loadKoanf()
	if err != nil {
		return err
	}
	if err := k.Set(key, parseValue(value)); err != nil {
		return err
	}
	return writeTOML(k, path)
}

// Show returns every currently-set key/value pair, keyed by dotted path.
// The returned map is unordered.
func Show() (map[string]any, error) {
	k, _, err := loadKoanf()
	if err != nil {
		return nil, err
	}
	return k.All(), nil
}

// Reset removes the config file entirely, so the next Load() falls back to
// built-in defaults.
func Reset() error {
	path := Path()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeTOML(k *koanf.Koanf, path string) error {
	b, err := k.Marshal(toml.Parser())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
