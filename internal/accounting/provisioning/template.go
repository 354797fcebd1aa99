package provisioning

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// GroupSpec is one template group. Parent refers to another template code.
type GroupSpec struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Nature      string `yaml:"nature"`
	MainGroup   string `yaml:"main_group"`
	Parent      string `yaml:"parent"`
	Role        string `yaml:"system_role"`
	Description string `yaml:"description"`
}

// AccountSpec is one locked default account keyed by its system role.
type AccountSpec struct {
	Role  string `yaml:"system_role"`
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Group string `yaml:"group"`
}

// Template is a declarative default chart for a branch.
type Template struct {
	Groups   []GroupSpec   `yaml:"groups"`
	Accounts []AccountSpec `yaml:"accounts"`
}

// DecodeTemplate parses a YAML template.
func DecodeTemplate(r io.Reader) (Template, error) {
	var tpl Template
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tpl); err != nil {
		return Template{}, fmt.Errorf("decode chart template: %w", err)
	}
	return tpl, nil
}

// LoadTemplate reads a YAML template from disk.
func LoadTemplate(path string) (Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return Template{}, fmt.Errorf("open chart template: %w", err)
	}
	defer f.Close()
	return DecodeTemplate(f)
}
