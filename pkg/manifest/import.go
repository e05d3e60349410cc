package manifest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
)

// Read decodes a manifest written by [Write]. Read does not close r.
func Read(r io.Reader, format Format) (*HttpArchiveDeps, error) {
	var m HttpArchiveDeps
	switch format {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&m); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&m); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, errs.New(errs.ErrCodeInvalidFormat, "unsupported manifest format %q", format)
	}
	if m.Deps == nil {
		m.Deps = []HttpArchiveDep{}
	}
	return &m, nil
}
