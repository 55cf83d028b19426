package simhost

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// PluginDir is the directory under the host home scanned for plugins.
const PluginDir = "UserPlugins"

// DefaultAction is the action name registered when a descriptor names none.
const DefaultAction = "HOSTBENCH_RUN_TESTS"

// PluginDescriptor describes a harness plugin installed in the host.
//
// Example:
//
//	suite: smoke
//	action: HOSTBENCH_RUN_TESTS
type PluginDescriptor struct {
	Suite  string `yaml:"suite"`
	Action string `yaml:"action,omitempty"`

	// Path is the file the descriptor was read from.
	Path string `yaml:"-"`
}

// ParsePluginDescriptor decodes a descriptor, rejecting unknown fields.
func ParsePluginDescriptor(data []byte) (PluginDescriptor, error) {
	var d PluginDescriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return d, fmt.Errorf("parse plugin descriptor: %w", err)
	}
	if d.Suite == "" {
		return d, fmt.Errorf("parse plugin descriptor: suite is required")
	}
	if d.Action == "" {
		d.Action = DefaultAction
	}
	return d, nil
}

// MarshalPluginDescriptor encodes d in the format LoadPlugins reads.
func MarshalPluginDescriptor(d PluginDescriptor) ([]byte, error) {
	return yaml.Marshal(d)
}

// LoadPlugins reads every *.yaml and *.yml descriptor in dir, in name
// order. A missing directory yields no plugins.
func LoadPlugins(dir string) ([]PluginDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read plugin dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	plugins := make([]PluginDescriptor, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read plugin %s: %w", name, err)
		}
		d, err := ParsePluginDescriptor(data)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}
		d.Path = path
		plugins = append(plugins, d)
	}
	return plugins, nil
}
