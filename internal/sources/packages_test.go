package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethanolivertroy/kpi-checker/internal/models"
)

func loadPackages(t *testing.T, typ, name, content string) []models.Record {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, name, content)

	src, err := New("deps", models.SourceDefinition{Type: typ, Path: name}, Options{BaseDir: dir})
	require.NoError(t, err)
	records, err := src.Load(context.Background())
	require.NoError(t, err)
	return records
}

func TestRequirements(t *testing.T) {
	records := loadPackages(t, "pypi", "requirements.txt", `# pinned
-r base.txt
Django==4.2.1
requests[security]>=2.28.0  # http
flask
`)
	require.Len(t, records, 3)
	assert.Equal(t, models.Record{"name": "django", "version": "4.2.1", "ecosystem": "pypi", "dev": false, "line": 3}, records[0])
	assert.Equal(t, "requests", records[1]["name"])
	assert.Equal(t, "2.28.0", records[1]["version"])
	assert.Equal(t, "", records[2]["version"])
}

func TestPyProject(t *testing.T) {
	records := loadPackages(t, "pypi", "pyproject.toml", `
[project]
dependencies = ["httpx>=0.27", "pydantic[email]==2.7.0; python_version>'3.8'"]

[tool.poetry.dependencies]
python = "^3.11"
Click = "^8.1"

[tool.poetry.dev-dependencies]
pytest = { version = "~8.2" }
`)
	require.Len(t, records, 4)
	assert.Equal(t, "httpx", records[0]["name"])
	assert.Equal(t, "2.7.0", records[1]["version"])
	assert.Equal(t, "click", records[2]["name"])
	assert.Equal(t, "8.1", records[2]["version"])
	assert.Equal(t, "pytest", records[3]["name"])
	assert.Equal(t, "8.2", records[3]["version"])
	assert.Equal(t, true, records[3]["dev"])
}

func TestPackageJSON(t *testing.T) {
	records := loadPackages(t, "npm", "package.json", `{
  "dependencies": {"lodash": "^4.17.21", "express": "~4.19.2"},
  "devDependencies": {"jest": ">=29.0.0"}
}`)
	require.Len(t, records, 3)
	assert.Equal(t, models.Record{"name": "express", "version": "4.19.2", "ecosystem": "npm", "dev": false, "line": 0}, records[0])
	assert.Equal(t, "jest", records[1]["name"])
	assert.Equal(t, true, records[1]["dev"])
	assert.Equal(t, "4.17.21", records[2]["version"])
}

func TestPackageLock(t *testing.T) {
	records := loadPackages(t, "npm", "package-lock.json", `{
  "lockfileVersion": 3,
  "packages": {
    "": {"version": "1.0.0"},
    "node_modules/@types/node": {"version": "20.1.0", "dev": true},
    "node_modules/a/node_modules/lodash": {"version": "4.17.20"},
    "node_modules/lodash": {"version": "4.17.21"},
    "node_modules/b/node_modules/lodash": {"version": "4.17.21"}
  }
}`)
	require.Len(t, records, 3)
	assert.Equal(t, "@types/node", records[0]["name"])
	assert.Equal(t, true, records[0]["dev"])
	assert.Equal(t, "4.17.20", records[1]["version"])
	assert.Equal(t, "4.17.21", records[2]["version"])

	v1 := loadPackages(t, "npm", "package-lock.json", `{"lockfileVersion": 1, "dependencies": {"left-pad": {"version": "1.3.0"}}}`)
	require.Len(t, v1, 1)
	assert.Equal(t, "left-pad", v1[0]["name"])
}

func TestPackageSourceErrors(t *testing.T) {
	_, err := New("deps", models.SourceDefinition{Type: "npm"}, Options{})
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "package.json", `[`)
	src, err := New("deps", models.SourceDefinition{Type: "npm", Path: "package.json"}, Options{BaseDir: dir})
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.Error(t, err)
}
