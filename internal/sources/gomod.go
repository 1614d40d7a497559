package sources

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"
)

// GoModSource lists the requirements of a go.mod file
type GoModSource struct {
	key  string
	Path string
}

// Name returns the source key
func (s *GoModSource) Name() string { return s.key }

// Load returns one record per required module
func (s *GoModSource) Load(ctx context.Context) ([]models.Record, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.key, err)
	}

	mod, err := modfile.Parse(s.Path, content, nil)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.key, err)
	}

	module := ""
	if mod.Module != nil {
		module = mod.Module.Mod.Path
	}

	records := make([]models.Record, 0, len(mod.Require))
	for _, req := range mod.Require {
		version := req.Mod.Version
		records = append(records, models.Record{
			"module":     module,
			"path":       req.Mod.Path,
			"version":    strings.TrimPrefix(version, "v"),
			"major":      semver.Major(version),
			"prerelease": semver.Prerelease(version) != "",
			"indirect":   req.Indirect,
		})
	}
	return records, nil
}
