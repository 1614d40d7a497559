package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethanolivertroy/kpi-checker/internal/cache"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestNewUnsupported(t *testing.T) {
	_, err := New("ldap", models.SourceDefinition{Type: "ldap"}, Options{})
	assert.Error(t, err)

	_, err = New("computers", models.SourceDefinition{Type: "csv"}, Options{})
	assert.Error(t, err)
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "computers.csv", "name| os| status\nsrv01| Windows Server 2019| enabled\nwks01| Windows 10| disabled\n")

	src, err := New("computers", models.SourceDefinition{Type: "csv", Path: "computers.csv"}, Options{BaseDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "computers", src.Name())

	records, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.Record{"name": "srv01", "os": "Windows Server 2019", "status": "enabled"}, records[0])
	assert.Equal(t, "disabled", records[1]["status"])
}

func TestCSVSourceDelimiter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.csv", "\ufeffname;enabled\nalice;true\n")

	src, err := New("users", models.SourceDefinition{Type: "csv", Path: filepath.Join(dir, "users.csv"), Delimiter: ";"}, Options{})
	require.NoError(t, err)

	records, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0]["name"])
}

func TestCSVSourceErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "")
	writeFile(t, dir, "ragged.csv", "a|b\n1|2|3\n")

	src, _ := New("empty", models.SourceDefinition{Type: "csv", Path: "empty.csv"}, Options{BaseDir: dir})
	records, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	src, _ = New("ragged", models.SourceDefinition{Type: "csv", Path: "ragged.csv"}, Options{BaseDir: dir})
	_, err = src.Load(context.Background())
	assert.Error(t, err)

	src, _ = New("missing", models.SourceDefinition{Type: "csv", Path: "missing.csv"}, Options{BaseDir: dir})
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJSONSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.json", `[{"name":"alice","groups":["admins","users"],"logon_days":3}]`)

	src, err := New("users", models.SourceDefinition{Type: "json", Path: "users.json"}, Options{BaseDir: dir})
	require.NoError(t, err)

	records, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []any{"admins", "users"}, records[0]["groups"])
	assert.Equal(t, 3.0, records[0]["logon_days"])

	writeFile(t, dir, "broken.json", `{"name":"alice"}`)
	src, _ = New("broken", models.SourceDefinition{Type: "json", Path: "broken.json"}, Options{BaseDir: dir})
	_, err = src.Load(context.Background())
	assert.Error(t, err)
}

const kevPayload = `{
  "title": "CISA Catalog of Known Exploited Vulnerabilities",
  "count": 2,
  "vulnerabilities": [
    {"cveID": "CVE-2021-44228", "vendorProject": "Apache", "product": "Log4j2",
     "dateAdded": "2021-12-10", "dueDate": "2021-12-24", "knownRansomwareCampaignUse": "Known",
     "cwes": ["CWE-20", "CWE-917"]},
    {"cveID": "CVE-2030-0001", "vendorProject": "Example", "product": "Widget",
     "dateAdded": "2030-01-01", "dueDate": "2030-01-21", "knownRansomwareCampaignUse": "Unknown"}
  ]
}`

func TestKEVSource(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/kev.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(kevPayload))
	})
	mux.HandleFunc("/epss", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Query().Get("cve"), "CVE-2021-44228"))
		w.Write([]byte(`{"status":"OK","data":[{"cve":"CVE-2021-44228","epss":"0.97","percentile":"0.99"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := cache.NewAt(t.TempDir(), time.Hour)
	require.NoError(t, err)

	opts := Options{
		Cache:      c,
		HTTPClient: srv.Client(),
		Now:        func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	src := NewKEVSource("kev", models.SourceDefinition{Type: "kev", URL: srv.URL + "/kev.json", EPSS: true}, opts)
	src.EPSSURL = srv.URL + "/epss"

	records, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	log4j := records[0]
	assert.Equal(t, "CVE-2021-44228", log4j["cveID"])
	assert.Equal(t, true, log4j["ransomware"])
	assert.Equal(t, true, log4j["overdue"])
	assert.Equal(t, []string{"CWE-20", "CWE-917"}, log4j["cwes"])
	assert.Equal(t, 0.97, log4j["epss"])

	assert.Equal(t, false, records[1]["ransomware"])
	assert.Equal(t, false, records[1]["overdue"])
	assert.Equal(t, []string{}, records[1]["cwes"])
	assert.Equal(t, 0.0, records[1]["epss"])

	// second load is served from the cache
	_, err = src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestKEVSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := New("kev", models.SourceDefinition{Type: "kev", URL: srv.URL}, Options{HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGoModSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", `module example.com/app

go 1.22

require (
	github.com/spf13/cobra v1.10.2
	golang.org/x/sys v0.0.0-20240101000000-abcdefabcdef // indirect
	github.com/go-chi/chi/v5 v5.1.0
)
`)

	src, err := New("deps", models.SourceDefinition{Type: "gomod"}, Options{BaseDir: dir})
	require.NoError(t, err)

	records, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, models.Record{
		"module":     "example.com/app",
		"path":       "github.com/spf13/cobra",
		"version":    "1.10.2",
		"major":      "v1",
		"prerelease": false,
		"indirect":   false,
	}, records[0])
	assert.Equal(t, true, records[1]["indirect"])
	assert.Equal(t, true, records[1]["prerelease"])
	assert.Equal(t, "v5", records[2]["major"])
}
