// Package config loads report definition files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is returned for definitions referencing unknown names
var ErrInvalidDefinition = errors.New("invalid definition")

// Load reads a definition file. YAML, TOML and JSON are recognised by extension.
func Load(path string) (*models.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	def, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a definition in the format named by ext (".yaml", ".toml", ".json")
func Parse(ext string, data []byte) (*models.Definition, error) {
	var def models.Definition

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &def); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported definition format %q", ext)
	}

	return &def, nil
}

// Validate checks that scopes and KPIs only reference declared names
func Validate(def *models.Definition) error {
	var errs []error

	for key, s := range def.Scopes {
		if s.Perimeter == "" {
			errs = append(errs, fmt.Errorf("scope %q has no perimeter", key))
		}
		if _, ok := def.Sources[s.SourceKey()]; !ok {
			errs = append(errs, fmt.Errorf("scope %q reads unknown source %q", key, s.SourceKey()))
		}
		for _, f := range s.Filters {
			if _, ok := def.Filters[f]; !ok {
				errs = append(errs, fmt.Errorf("scope %q uses unknown filter %q", key, f))
			}
		}
	}

	for i, k := range def.KPIs {
		if k.Name == "" {
			errs = append(errs, fmt.Errorf("kpi #%d has no name", i))
		}
		if len(k.Scopes) == 0 {
			errs = append(errs, fmt.Errorf("kpi %q has no scope", k.Name))
		}
		for _, ks := range k.Scopes {
			if len(ks.Build) == 0 {
				errs = append(errs, fmt.Errorf("kpi %q scope %q builds from nothing", k.Name, ks.Name))
			}
			for _, b := range ks.Build {
				s, ok := def.Scopes[b]
				if !ok {
					errs = append(errs, fmt.Errorf("kpi %q scope %q builds from unknown scope %q", k.Name, ks.Name, b))
					continue
				}
				if k.Perimeter != "" && s.Perimeter != k.Perimeter {
					errs = append(errs, fmt.Errorf("kpi %q on %q builds from scope %q on %q", k.Name, k.Perimeter, b, s.Perimeter))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, errors.Join(errs...))
	}
	return nil
}
