package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"commitgen/cli/internal/erruser"
)

// readDocument decodes a TOML file into a generic document. A missing file
// returns ok=false and no error.
func readDocument(path string) (map[string]any, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, erruser.Configuration(fmt.Sprintf("Could not read config file %s.", path), err)
	}
	doc := make(map[string]any)
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, false, erruser.Configuration(fmt.Sprintf("Invalid TOML in config file %s.", path), err).
			WithHint("Fix the syntax error or remove the file.")
	}
	return doc, true, nil
}

// writeDocument encodes doc as TOML and replaces path atomically, creating
// parent directories as needed.
func writeDocument(path string, doc map[string]any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return erruser.Configuration(fmt.Sprintf("Could not create config directory %s.", dir), err)
	}
	f, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return erruser.Configuration(fmt.Sprintf("Could not write config file %s.", path), err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if err := toml.NewEncoder(f).Encode(doc); err != nil {
		_ = f.Close()
		return erruser.Configuration(fmt.Sprintf("Could not encode config file %s.", path), err)
	}
	if err := f.Close(); err != nil {
		return erruser.Configuration(fmt.Sprintf("Could not write config file %s.", path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return erruser.Configuration(fmt.Sprintf("Could not write config file %s.", path), err)
	}
	return nil
}
