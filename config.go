package evstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnv replaces ${VAR} and ${VAR:-default} with environment values.
// Unset variables without a default expand to the empty string.
func expandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}

// LoadConfig reads decoder options from a YAML file. Keys left out keep
// their DefaultOptions value; unknown keys are an error.
//
//	max_frame_size: 1048576
//	redefine: reject
//	klasses:
//	  - id: 1
//	    name: Point
//	    fields:
//	      - {name: x, type: u32}
//	      - {name: y, type: u32}
func LoadConfig(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Options{}, fmt.Errorf("config file not found: %s", path)
		}
		return Options{}, fmt.Errorf("cannot read config file %q: %w", path, err)
	}
	opts, err := ParseConfig(data)
	if err != nil {
		return Options{}, fmt.Errorf("config %s: %w", path, err)
	}
	return opts, nil
}

// ParseConfig decodes YAML options on top of DefaultOptions and validates them.
func ParseConfig(data []byte) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	for i := range opts.Klasses {
		if err := opts.Klasses[i].Validate(); err != nil {
			return Options{}, fmt.Errorf("klass %d %q: %w", opts.Klasses[i].ID, opts.Klasses[i].Name, err)
		}
	}
	return opts, nil
}
