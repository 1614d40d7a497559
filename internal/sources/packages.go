package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ethanolivertroy/kpi-checker/internal/models"
)

// PackageSource reads the dependencies of a Python or Node project manifest,
// one record per package with name, version, ecosystem, dev and line.
// The manifest kind is chosen from the file name.
type PackageSource struct {
	key       string
	Path      string
	Ecosystem string // "pypi" or "npm"
}

// Name returns the source key
func (s *PackageSource) Name() string { return s.key }

// Load parses the manifest
func (s *PackageSource) Load(ctx context.Context) ([]models.Record, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.key, err)
	}

	var pkgs []pkg
	switch base := filepath.Base(s.Path); {
	case s.Ecosystem == "npm" && base == "package-lock.json":
		pkgs, err = parsePackageLock(content)
	case s.Ecosystem == "npm":
		pkgs, err = parsePackageJSON(content)
	case base == "pyproject.toml":
		pkgs, err = parsePyProject(content)
	default:
		pkgs = parseRequirements(content)
	}
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.key, err)
	}

	records := make([]models.Record, 0, len(pkgs))
	for _, p := range pkgs {
		records = append(records, models.Record{
			"name":      p.name,
			"version":   p.version,
			"ecosystem": s.Ecosystem,
			"dev":       p.dev,
			"line":      p.line,
		})
	}
	return records, nil
}

type pkg struct {
	name    string
	version string
	dev     bool
	line    int
}

// sortPkgs orders packages decoded from maps
func sortPkgs(pkgs []pkg) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		if pkgs[i].name != pkgs[j].name {
			return pkgs[i].name < pkgs[j].name
		}
		return pkgs[i].version < pkgs[j].version
	})
}

// versionPattern matches package version specifiers like ==1.2.3, >=1.2.3, ~=1.2.3
var versionPattern = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)\s*([<>=!~]+)\s*([\d.]+.*)$`)

// namePattern matches just package names without versions
var namePattern = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)\s*$`)

// requirementSpec splits a PEP 508 spec such as "flask[async]>=2.0; python_version>'3.8'"
func requirementSpec(spec string) (name, version string) {
	if i := strings.Index(spec, "#"); i >= 0 {
		spec = spec[:i]
	}
	if i := strings.Index(spec, ";"); i >= 0 {
		spec = spec[:i]
	}
	if i := strings.Index(spec, "["); i > 0 {
		if j := strings.Index(spec, "]"); j > i {
			spec = spec[:i] + spec[j+1:]
		}
	}
	spec = strings.TrimSpace(spec)

	if m := versionPattern.FindStringSubmatch(spec); m != nil {
		return strings.ToLower(m[1]), m[3]
	}
	if m := namePattern.FindStringSubmatch(spec); m != nil {
		return strings.ToLower(m[1]), ""
	}
	return "", ""
}

func parseRequirements(content []byte) []pkg {
	var pkgs []pkg
	for n, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		// options such as -r or --index-url
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if name, version := requirementSpec(line); name != "" {
			pkgs = append(pkgs, pkg{name: name, version: version, line: n + 1})
		}
	}
	return pkgs
}

type pyproject struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePyProject(content []byte) ([]pkg, error) {
	var proj pyproject
	if err := toml.Unmarshal(content, &proj); err != nil {
		return nil, fmt.Errorf("failed to parse pyproject.toml: %w", err)
	}

	var pkgs []pkg
	for _, spec := range proj.Project.Dependencies {
		if name, version := requirementSpec(spec); name != "" {
			pkgs = append(pkgs, pkg{name: name, version: version})
		}
	}

	var poetry []pkg
	add := func(deps map[string]any, dev bool) {
		for name, val := range deps {
			if name == "python" {
				continue
			}
			poetry = append(poetry, pkg{name: strings.ToLower(name), version: poetryVersion(val), dev: dev})
		}
	}
	add(proj.Tool.Poetry.Dependencies, false)
	add(proj.Tool.Poetry.DevDependencies, true)
	sortPkgs(poetry)

	return append(pkgs, poetry...), nil
}

func poetryVersion(val any) string {
	var v string
	switch val := val.(type) {
	case string:
		v = val
	case map[string]any:
		v, _ = val["version"].(string)
	}
	return strings.TrimLeft(v, "^~")
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(content []byte) ([]pkg, error) {
	var manifest packageJSON
	if err := json.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}

	var pkgs []pkg
	for name, v := range manifest.Dependencies {
		pkgs = append(pkgs, pkg{name: name, version: npmVersion(v)})
	}
	for name, v := range manifest.DevDependencies {
		pkgs = append(pkgs, pkg{name: name, version: npmVersion(v), dev: true})
	}
	sortPkgs(pkgs)
	return pkgs, nil
}

type lockEntry struct {
	Version string `json:"version"`
	Dev     bool   `json:"dev"`
}

// packageLock covers lockfile v1 (dependencies) and v2/v3 (packages)
type packageLock struct {
	Packages     map[string]lockEntry `json:"packages"`
	Dependencies map[string]lockEntry `json:"dependencies"`
}

func parsePackageLock(content []byte) ([]pkg, error) {
	var lock packageLock
	if err := json.Unmarshal(content, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse package-lock.json: %w", err)
	}

	var pkgs []pkg
	seen := make(map[string]bool)
	for path, e := range lock.Packages {
		// "" is the root project, nested installs keep their last segment
		name := path
		if i := strings.LastIndex(path, "node_modules/"); i >= 0 {
			name = path[i+len("node_modules/"):]
		}
		if name == "" || seen[name+"@"+e.Version] {
			continue
		}
		seen[name+"@"+e.Version] = true
		pkgs = append(pkgs, pkg{name: name, version: e.Version, dev: e.Dev})
	}

	if len(pkgs) == 0 {
		for name, e := range lock.Dependencies {
			pkgs = append(pkgs, pkg{name: name, version: e.Version, dev: e.Dev})
		}
	}
	sortPkgs(pkgs)
	return pkgs, nil
}

// npmVersion strips range prefixes like ^, ~ or >=
func npmVersion(v string) string {
	return strings.TrimLeft(v, "^~<>=")
}
