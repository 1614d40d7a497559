package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethanolivertroy/kpi-checker/internal/cache"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
)

const (
	kevURL  = "https://raw.githubusercontent.com/cisagov/kev-data/main/known_exploited_vulnerabilities.json"
	epssURL = "https://api.first.org/data/v1/epss"
)

// KEVSource loads the CISA Known Exploited Vulnerabilities catalog, one
// record per vulnerability
type KEVSource struct {
	key     string
	URL     string
	EPSSURL string
	EPSS    bool

	httpClient *http.Client
	cache      *cache.Cache
	now        func() time.Time
}

// NewKEVSource creates a KEV source. def.URL overrides the catalog location.
func NewKEVSource(key string, def models.SourceDefinition, opts Options) *KEVSource {
	u := def.URL
	if u == "" {
		u = kevURL
	}
	return &KEVSource{
		key:        key,
		URL:        u,
		EPSSURL:    epssURL,
		EPSS:       def.EPSS,
		httpClient: opts.httpClient(),
		cache:      opts.Cache,
		now:        opts.now,
	}
}

// Name returns the source key
func (s *KEVSource) Name() string { return s.key }

// kevResponse represents the top-level JSON response from CISA KEV catalog
type kevResponse struct {
	Title           string    `json:"title"`
	CatalogVersion  string    `json:"catalogVersion"`
	DateReleased    string    `json:"dateReleased"`
	Count           int       `json:"count"`
	Vulnerabilities []kevJSON `json:"vulnerabilities"`
}

type kevJSON struct {
	CVEID                      string   `json:"cveID"`
	VendorProject              string   `json:"vendorProject"`
	Product                    string   `json:"product"`
	VulnerabilityName          string   `json:"vulnerabilityName"`
	DateAdded                  string   `json:"dateAdded"`
	ShortDescription           string   `json:"shortDescription"`
	RequiredAction             string   `json:"requiredAction"`
	DueDate                    string   `json:"dueDate"`
	KnownRansomwareCampaignUse string   `json:"knownRansomwareCampaignUse"`
	Notes                      string   `json:"notes"`
	CWEs                       []string `json:"cwes"`
}

// Load fetches the catalog, from the cache when it is fresh enough
func (s *KEVSource) Load(ctx context.Context) ([]models.Record, error) {
	var data []byte
	if s.cache != nil {
		if cached, ok := s.cache.Get(s.URL); ok {
			data = cached
		}
	}

	if data == nil {
		var err error
		data, err = s.get(ctx, s.URL)
		if err != nil {
			return nil, fmt.Errorf("source %q: failed to fetch KEV data: %w", s.key, err)
		}
		// A cache write failure only costs a refetch next time
		if s.cache != nil {
			_ = s.cache.Set(s.URL, data)
		}
	}

	records, err := s.parse(data)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.key, err)
	}
	if s.EPSS {
		s.enrich(ctx, records)
	}
	return records, nil
}

func (s *KEVSource) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *KEVSource) parse(data []byte) ([]models.Record, error) {
	var resp kevResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse KEV data: %w", err)
	}

	now := s.now()
	records := make([]models.Record, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		cwes := v.CWEs
		if cwes == nil {
			cwes = []string{}
		}
		overdue := false
		if due, err := time.Parse("2006-01-02", v.DueDate); err == nil {
			overdue = due.Before(now)
		}

		records = append(records, models.Record{
			"cveID":                      v.CVEID,
			"vendorProject":              v.VendorProject,
			"product":                    v.Product,
			"vulnerabilityName":          v.VulnerabilityName,
			"dateAdded":                  v.DateAdded,
			"dueDate":                    v.DueDate,
			"shortDescription":           v.ShortDescription,
			"requiredAction":             v.RequiredAction,
			"knownRansomwareCampaignUse": v.KnownRansomwareCampaignUse,
			"ransomware":                 v.KnownRansomwareCampaignUse == "Known",
			"notes":                      v.Notes,
			"cwes":                       cwes,
			"overdue":                    overdue,
		})
	}
	return records, nil
}

type epssResponse struct {
	Status string `json:"status"`
	Total  int    `json:"total"`
	Data   []struct {
		CVE        string `json:"cve"`
		EPSS       string `json:"epss"`
		Percentile string `json:"percentile"`
	} `json:"data"`
}

// enrich adds epss and epss_percentile to every record. Scores the API does
// not return stay at zero.
func (s *KEVSource) enrich(ctx context.Context, records []models.Record) {
	byCVE := make(map[string]models.Record, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		r["epss"] = 0.0
		r["epss_percentile"] = 0.0
		id, _ := r["cveID"].(string)
		byCVE[id] = r
		ids = append(ids, id)
	}

	// chunk to avoid URL length issues
	const chunkSize = 100
	for i := 0; i < len(ids); i += chunkSize {
		end := min(i+chunkSize, len(ids))

		data, err := s.get(ctx, s.EPSSURL+"?cve="+strings.Join(ids[i:end], ","))
		if err != nil {
			continue
		}
		var resp epssResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		for _, d := range resp.Data {
			r, ok := byCVE[d.CVE]
			if !ok {
				continue
			}
			score, _ := strconv.ParseFloat(d.EPSS, 64)
			percentile, _ := strconv.ParseFloat(d.Percentile, 64)
			r["epss"] = score
			r["epss_percentile"] = percentile
		}
	}
}
