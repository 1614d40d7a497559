// Package calculator evaluates the KPIs of a definition against loaded sources.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethanolivertroy/kpi-checker/internal/cache"
	"github.com/ethanolivertroy/kpi-checker/internal/config"
	"github.com/ethanolivertroy/kpi-checker/internal/dataset"
	"github.com/ethanolivertroy/kpi-checker/internal/filter"
	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"github.com/ethanolivertroy/kpi-checker/internal/operation"
	"github.com/ethanolivertroy/kpi-checker/internal/sources"
)

// ErrUnusableScope is returned when a scope references a filter that failed to build
var ErrUnusableScope = errors.New("unusable scope")

// Evaluation is one KPI computed over one of its scopes
type Evaluation struct {
	KPI      *kpi.KPI
	Scope    string
	Snapshot kpi.Snapshot
}

// Calculator orchestrates loading sources and computing KPIs
type Calculator struct {
	config  *models.Config
	def     *models.Definition
	reg     *operation.Registry
	opts    sources.Options
	log     logrus.FieldLogger
	filters map[string]*filter.Filter

	mu      sync.Mutex
	records map[string][]models.Record
}

// New creates a Calculator for def. The definition is validated first.
func New(cfg *models.Config, def *models.Definition, log logrus.FieldLogger) (*Calculator, error) {
	if err := config.Validate(def); err != nil {
		return nil, err
	}

	var c *cache.Cache
	if !cfg.NoCache {
		var err error
		c, err = cache.New("kpi-checker", cfg.CacheTTL)
		if err != nil {
			// Non-fatal: continue without cache
			log.WithError(err).Warn("cache disabled")
			c = nil
		}
	}

	calc := &Calculator{
		config: cfg,
		def:    def,
		reg:    operation.NewRegistry(),
		opts: sources.Options{
			BaseDir:    cfg.DataDir,
			Cache:      c,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		},
		log:     log,
		records: make(map[string][]models.Record),
	}
	calc.buildFilters()
	return calc, nil
}

// Registry returns the operation registry filters are resolved against
func (c *Calculator) Registry() *operation.Registry { return c.reg }

// Definition returns the definition being computed
func (c *Calculator) Definition() *models.Definition { return c.def }

// Filters are stateless and shared by every worker
func (c *Calculator) buildFilters() {
	c.filters = make(map[string]*filter.Filter, len(c.def.Filters))
	for name, decl := range c.def.Filters {
		f, err := filter.FromMap(c.reg, decl)
		if err != nil {
			c.log.WithField("filter", name).WithError(err).Error("skipping invalid filter")
			continue
		}
		c.filters[name] = f
	}
}

// Load reads every source concurrently
func (c *Calculator) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for key, sd := range c.def.Sources {
		g.Go(func() error {
			src, err := sources.New(key, sd, c.opts)
			if err != nil {
				return err
			}
			records, err := src.Load(ctx)
			if err != nil {
				return err
			}
			c.log.WithFields(logrus.Fields{"source": key, "records": len(records)}).Debug("source loaded")

			c.mu.Lock()
			c.records[key] = records
			c.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Records returns the loaded records of a source
func (c *Calculator) Records(source string) []models.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[source]
}

// Run loads the sources when needed and computes every KPI on a bounded
// worker pool. Evaluations keep definition order. KPIs or scopes that cannot
// be computed are logged and left out.
func (c *Calculator) Run(ctx context.Context) ([]Evaluation, error) {
	c.mu.Lock()
	loaded := len(c.records) > 0
	c.mu.Unlock()
	if !loaded {
		if err := c.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load sources: %w", err)
		}
	}

	workers := c.config.Workers
	if workers <= 0 {
		workers = 5
	}

	results := make([][]Evaluation, len(c.def.KPIs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, kd := range c.def.KPIs {
		g.Go(func() error {
			evals, err := c.evaluate(ctx, kd)
			if err != nil {
				return err
			}
			results[i] = evals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Evaluation
	for _, evals := range results {
		out = append(out, evals...)
	}
	return out, nil
}

// evaluate computes one KPI over all its scopes. Every DataSet and the rules
// tree are built here, so nothing stateful crosses workers.
func (c *Calculator) evaluate(ctx context.Context, kd models.KPIDefinition) ([]Evaluation, error) {
	log := c.log.WithField("kpi", kd.Name)

	controls, errs := filter.ParseList(c.reg, kd.Controls)
	if len(errs) > 0 {
		log.WithError(errors.Join(errs...)).Error("skipping kpi with invalid controls")
		return nil, nil
	}
	conds := filter.Conditions(controls...)
	if kd.Rules != nil {
		tree, err := filter.BuildTree(c.reg, kd.Rules)
		if err != nil {
			log.WithError(err).Error("skipping kpi with invalid rules")
			return nil, nil
		}
		conds = append(conds, tree)
	}

	var evals []Evaluation
	for _, ks := range kd.Scopes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scopeLog := log.WithField("scope", ks.Name)

		scope, err := c.kpiScope(ks)
		if err != nil {
			scopeLog.WithError(err).Error("skipping scope")
			continue
		}

		perimeter := kd.Perimeter
		if perimeter == "" {
			perimeter = scope.Perimeter()
		}
		k := kpi.New(kd.Name, perimeter, scope, conds,
			kpi.WithDate(c.config.Date), kpi.WithDescription(kd.Description))

		snap, err := k.Snapshot()
		if err != nil {
			scopeLog.WithError(err).Warn("kpi not computed")
			continue
		}
		scopeLog.WithFields(logrus.Fields{"value": snap.Value, "conformity": snap.Level.Name}).Debug("kpi computed")
		evals = append(evals, Evaluation{KPI: k, Scope: ks.Name, Snapshot: snap})
	}
	return evals, nil
}

// kpiScope merges the named scopes a KPI scope is built from
func (c *Calculator) kpiScope(ks models.KPIScope) (*dataset.DataSet, error) {
	parts := make([]*dataset.DataSet, 0, len(ks.Build))
	for _, name := range ks.Build {
		s, err := c.scope(name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return dataset.Merge(ks.Name, parts...)
}

// scope builds the named scope over its source records
func (c *Calculator) scope(name string) (*dataset.DataSet, error) {
	sd, ok := c.def.Scopes[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scope %q", ErrUnusableScope, name)
	}

	conds := make([]filter.Condition, 0, len(sd.Filters))
	for _, fname := range sd.Filters {
		f, ok := c.filters[fname]
		if !ok {
			return nil, fmt.Errorf("%w: scope %q uses invalid filter %q", ErrUnusableScope, name, fname)
		}
		conds = append(conds, f)
	}

	label := sd.Name
	if label == "" {
		label = name
	}
	return dataset.New(label, sd.Perimeter, dataset.Records(c.Records(sd.SourceKey())), conds...), nil
}
