package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"commitgen/cli/internal/erruser"
)

//go:embed templates.yaml
var builtinTemplates []byte

// TemplatesFileName is the user template catalog stored next to config.toml.
const TemplatesFileName = "templates.yaml"

// Template is one named system prompt.
type Template struct {
	Description string `yaml:"description"`
	System      string `yaml:"system"`
}

// Catalog maps template names to templates.
type Catalog map[string]Template

// Builtin returns the embedded template catalog.
func Builtin() Catalog {
	c, err := parseCatalog(builtinTemplates)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded templates: %v", err))
	}
	return c
}

// LoadCatalog returns the built-in templates overlaid with the user catalog
// at userPath. A missing user file is not an error; user entries replace
// built-in entries of the same name.
func LoadCatalog(userPath string) (Catalog, error) {
	c := Builtin()
	if userPath == "" {
		return c, nil
	}
	data, err := os.ReadFile(userPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, erruser.Configuration(fmt.Sprintf("Could not read %s.", userPath), err)
	}
	user, err := parseCatalog(data)
	if err != nil {
		return nil, erruser.Configuration(fmt.Sprintf("Invalid template file %s.", userPath), err).
			WithHint("Each entry needs a name with description and system fields.")
	}
	for name, t := range user {
		c[name] = t
	}
	return c, nil
}

func parseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c == nil {
		c = Catalog{}
	}
	for name, t := range c {
		if strings.TrimSpace(t.System) == "" {
			return nil, fmt.Errorf("template %q has no system prompt", name)
		}
		t.System = strings.TrimSpace(t.System)
		c[name] = t
	}
	return c, nil
}

// Names returns the template names, sorted.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the named template or a configuration error listing the
// available names.
func (c Catalog) Get(name string) (Template, error) {
	t, ok := c[name]
	if !ok {
		return Template{}, erruser.Configuration(fmt.Sprintf("Unknown prompt template %q.", name), nil).
			WithHint("Available templates: " + strings.Join(c.Names(), ", "))
	}
	return t, nil
}
