package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"gopkg.in/yaml.v2"
)

// EnvFunc exposes environment variables to HCL as env("NAME").
// An unset variable yields the empty string.
var EnvFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": EnvFunc,
		},
	}
}

// LoadFile loads a config file (HCL, JSON or YAML), applies defaults and
// validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(path, data)
}

// Load decodes data using the format implied by filename's extension.
func Load(filename string, data []byte) (*Config, error) {
	var cfg Config

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".hcl", ".json":
		if err := hclsimple.Decode(filename, data, evalContext(), &cfg); err != nil {
			return nil, fmt.Errorf("config decode error: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("YAML decode error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
