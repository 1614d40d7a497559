// Package sources loads records from files and remote catalogs.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ethanolivertroy/kpi-checker/internal/cache"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
)

// Source produces the records of one perimeter
type Source interface {
	// Name returns the key the source is declared under
	Name() string

	// Load reads every record of the source
	Load(ctx context.Context) ([]models.Record, error)
}

// Options are shared by every source of a run
type Options struct {
	// BaseDir resolves relative file paths
	BaseDir string

	// Cache keeps remote payloads, nil disables caching
	Cache *cache.Cache

	HTTPClient *http.Client

	// Now is used for date-relative fields, defaults to time.Now
	Now func() time.Time
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || o.BaseDir == "" {
		return path
	}
	return filepath.Join(o.BaseDir, path)
}

// New builds the source declared under key
func New(key string, def models.SourceDefinition, opts Options) (Source, error) {
	switch def.Type {
	case "csv":
		if def.Path == "" {
			return nil, fmt.Errorf("source %q: csv needs a path", key)
		}
		delim := '|'
		if def.Delimiter != "" {
			delim = []rune(def.Delimiter)[0]
		}
		return &CSVSource{key: key, Path: opts.resolve(def.Path), Delimiter: delim}, nil
	case "json":
		if def.Path == "" {
			return nil, fmt.Errorf("source %q: json needs a path", key)
		}
		return &JSONSource{key: key, Path: opts.resolve(def.Path)}, nil
	case "kev":
		return NewKEVSource(key, def, opts), nil
	case "gomod":
		path := def.Path
		if path == "" {
			path = "go.mod"
		}
		return &GoModSource{key: key, Path: opts.resolve(path)}, nil
	case "pypi", "npm":
		if def.Path == "" {
			return nil, fmt.Errorf("source %q: %s needs a path", key, def.Type)
		}
		return &PackageSource{key: key, Path: opts.resolve(def.Path), Ecosystem: def.Type}, nil
	}
	return nil, fmt.Errorf("source %q: unsupported type %q", key, def.Type)
}
