// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config reads the Cypress-style configuration that drives a
// selection: the spec patterns plus the grep options in the env section.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override config env values, e.g.
// CYPRESS_grepTags=@smoke.
const EnvPrefix = "CYPRESS_"

// DefaultExcludeSpecPattern is used when the config does not name one.
var DefaultExcludeSpecPattern = []string{"*.hot-update.js"}

// alwaysExcluded is added to every exclude list.
const alwaysExcluded = "**/node_modules/**"

// Option names with their accepted aliases, first one preferred.
var (
	grepKeys                  = []string{"grep"}
	grepTagsKeys              = []string{"grepTags", "grep-tags"}
	grepBurnKeys              = []string{"grepBurn", "grep-burn", "burn"}
	grepUntaggedKeys          = []string{"grepUntagged", "grep-untagged"}
	grepOmitFilteredKeys      = []string{"grepOmitFiltered", "grep-omit-filtered"}
	grepFilterSpecsKeys       = []string{"grepFilterSpecs"}
	grepIntegrationFolderKeys = []string{"grepIntegrationFolder"}
)

// Config is the subset of a Cypress config file the filter reads.
type Config struct {
	SpecPattern        StringList     `yaml:"specPattern"`
	ExcludeSpecPattern StringList     `yaml:"excludeSpecPattern"`
	Env                map[string]any `yaml:"env"`
}

// Options are the resolved grep options.
type Options struct {
	Grep                  string
	GrepTags              string
	GrepBurn              int
	GrepUntagged          bool
	GrepOmitFiltered      bool
	GrepFilterSpecs       bool
	GrepIntegrationFolder string
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*l = nil
			return nil
		}
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// Load reads a YAML or JSON config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	cfg, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, nil
}

// Parse decodes a YAML or JSON config document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Env == nil {
		cfg.Env = make(map[string]any)
	}
	return &cfg, nil
}

// ApplyEnviron copies every CYPRESS_ prefixed variable into the env section,
// overriding values from the file. environ has the form of os.Environ.
func (c *Config) ApplyEnviron(environ []string) {
	if c.Env == nil {
		c.Env = make(map[string]any)
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		if name := strings.TrimPrefix(k, EnvPrefix); name != "" {
			c.Env[name] = v
		}
	}
}

// Excludes returns the exclude patterns, defaults applied.
func (c *Config) Excludes() []string {
	out := []string(c.ExcludeSpecPattern)
	if len(out) == 0 {
		out = DefaultExcludeSpecPattern
	}
	return append(append([]string(nil), out...), alwaysExcluded)
}

// Validate checks that the config can drive a spec selection.
func (c *Config) Validate() error {
	if len(c.SpecPattern) == 0 {
		return fmt.Errorf("missing specPattern")
	}
	return nil
}

// Options resolves the grep options from the env section.
func (c *Config) Options() (*Options, error) {
	var o Options
	var err error

	if o.Grep, err = c.stringOption(grepKeys); err != nil {
		return nil, err
	}
	o.Grep = strings.TrimSpace(o.Grep)
	if o.GrepTags, err = c.stringOption(grepTagsKeys); err != nil {
		return nil, err
	}
	if o.GrepBurn, err = c.intOption(grepBurnKeys); err != nil {
		return nil, err
	}
	if o.GrepUntagged, err = c.boolOption(grepUntaggedKeys); err != nil {
		return nil, err
	}
	if o.GrepOmitFiltered, err = c.boolOption(grepOmitFilteredKeys); err != nil {
		return nil, err
	}
	if o.GrepIntegrationFolder, err = c.stringOption(grepIntegrationFolderKeys); err != nil {
		return nil, err
	}

	// Spec filtering is opt-in and only turns on for an explicit true.
	if v, _, ok := c.lookup(grepFilterSpecsKeys); ok {
		switch typ := v.(type) {
		case bool:
			o.GrepFilterSpecs = typ
		case string:
			o.GrepFilterSpecs = typ == "true"
		}
	}

	return &o, nil
}

// lookup returns the first set value among keys. Empty strings and false fall
// through to the next alias.
func (c *Config) lookup(keys []string) (any, string, bool) {
	for _, k := range keys {
		switch v := c.Env[k].(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
		case bool:
			if !v {
				continue
			}
		}
		return c.Env[k], k, true
	}
	return nil, "", false
}

func (c *Config) stringOption(keys []string) (string, error) {
	v, k, ok := c.lookup(keys)
	if !ok {
		return "", nil
	}

	switch typ := v.(type) {
	case string:
		return typ, nil
	case bool:
		return "", fmt.Errorf("env.%s: expected a string, got true", k)
	case int, int64, float64:
		return fmt.Sprint(typ), nil
	default:
		return "", fmt.Errorf("env.%s: expected a string, got %T", k, v)
	}
}

func (c *Config) boolOption(keys []string) (bool, error) {
	v, k, ok := c.lookup(keys)
	if !ok {
		return false, nil
	}

	switch typ := v.(type) {
	case bool:
		return typ, nil
	case string:
		if typ == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(typ)
		if err != nil {
			return false, errors.Wrapf(err, "env.%s", k)
		}
		return b, nil
	default:
		return false, fmt.Errorf("env.%s: expected a boolean, got %T", k, v)
	}
}

func (c *Config) intOption(keys []string) (int, error) {
	v, k, ok := c.lookup(keys)
	if !ok {
		return 0, nil
	}

	switch typ := v.(type) {
	case int:
		return typ, nil
	case int64:
		return int(typ), nil
	case float64:
		return int(typ), nil
	case bool:
		if typ {
			return 1, nil
		}
		return 0, nil
	case string:
		if typ == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(typ))
		if err != nil {
			return 0, errors.Wrapf(err, "env.%s", k)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("env.%s: expected a number, got %T", k, v)
	}
}
