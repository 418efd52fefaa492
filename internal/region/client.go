// Package region provides read access to the per-country creator
// databases. Each region runs its own independently-operated Postgres
// project; any of them may be unconfigured or unreachable at any time,
// and callers are expected to treat both as soft conditions.
package region

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mktbiz-byte/cnec-platform/internal/db"
	"github.com/mktbiz-byte/cnec-platform/internal/model"
	"github.com/mktbiz-byte/cnec-platform/internal/resilience"
)

// QueryOptions narrows a table read. Filters with slice values become
// `col = ANY(...)` conditions; scalar values become equality checks.
type QueryOptions struct {
	Columns    []string
	Filters    map[string]any
	OrderBy    string
	Descending bool
	Limit      int
}

// Client is a read handle onto one region's backing store.
type Client interface {
	// Region identifies which partition this client is bound to.
	Region() model.Region

	// Query selects rows from a table. Row column names are preserved
	// as-is so the aggregation layer can resolve per-region aliases.
	Query(ctx context.Context, table string, opts QueryOptions) ([]model.RawRecord, error)
}

// PGClient implements Client over a pgx connection pool.
type PGClient struct {
	region  model.Region
	pool    db.Pool
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewPGClient wraps an existing pool. Used directly by tests; production
// construction goes through NewClients.
func NewPGClient(region model.Region, pool db.Pool) *PGClient {
	return &PGClient{
		region:  region,
		pool:    pool,
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewBreaker(resilience.BreakerConfig{}),
	}
}

func (c *PGClient) Region() model.Region { return c.region }

// Query selects rows, retrying transient failures. A region that stays
// unreachable through the retries trips its breaker, so subsequent
// aggregate calls skip it cheaply until the cooldown instead of
// burning a fresh retry cycle. The returned records keep their source
// column names.
func (c *PGClient) Query(ctx context.Context, table string, opts QueryOptions) ([]model.RawRecord, error) {
	return resilience.Guard(ctx, c.breaker, func(ctx context.Context) ([]model.RawRecord, error) {
		return c.query(ctx, table, opts)
	})
}

func (c *PGClient) query(ctx context.Context, table string, opts QueryOptions) ([]model.RawRecord, error) {
	sql, args := buildSelect(table, opts)

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]model.RawRecord, error) {
		rows, err := c.pool.Query(ctx, sql, args...)
		if err != nil {
			return nil, eris.Wrapf(err, "region %s: query %s", c.region, table)
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		var out []model.RawRecord
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return nil, eris.Wrapf(err, "region %s: scan %s", c.region, table)
			}
			rec := make(model.RawRecord, len(fields))
			for i, fd := range fields {
				rec[fd.Name] = values[i]
			}
			out = append(out, rec)
		}
		if err := rows.Err(); err != nil {
			return nil, eris.Wrapf(err, "region %s: rows %s", c.region, table)
		}
		return out, nil
	})
}

// buildSelect renders a deterministic SELECT: filters are applied in
// sorted column order so generated SQL is stable across calls.
func buildSelect(table string, opts QueryOptions) (string, []any) {
	cols := "*"
	if len(opts.Columns) > 0 {
		cols = strings.Join(opts.Columns, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, table)

	var args []any
	if len(opts.Filters) > 0 {
		keys := make([]string, 0, len(opts.Filters))
		for k := range opts.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		conds := make([]string, 0, len(keys))
		for _, k := range keys {
			v := opts.Filters[k]
			args = append(args, v)
			if reflect.ValueOf(v).Kind() == reflect.Slice {
				conds = append(conds, fmt.Sprintf("%s = ANY($%d)", k, len(args)))
			} else {
				conds = append(conds, fmt.Sprintf("%s = $%d", k, len(args)))
			}
		}
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if opts.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", opts.OrderBy)
		if opts.Descending {
			b.WriteString(" DESC")
		}
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}

	return b.String(), args
}

// Clients holds one optional client per region. A nil entry means the
// region is not configured in this deployment; aggregation treats that
// as an empty region, never as an error.
type Clients struct {
	byRegion map[model.Region]Client
	breakers *resilience.RegionBreakers
	closers  []func()
}

// Endpoint configures one region's database connection.
type Endpoint struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// NewClients dials every region with a configured URL. A region that
// fails to dial is logged and left unconfigured rather than failing
// startup — the platform stays useful with partial regional coverage.
func NewClients(ctx context.Context, endpoints map[model.Region]Endpoint) *Clients {
	breakerCfg := resilience.BreakerConfig{
		OnStateChange: func(from, to resilience.BreakerState) {
			zap.L().Warn("region breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	c := &Clients{
		byRegion: make(map[model.Region]Client, len(model.AllRegions)),
		breakers: resilience.NewRegionBreakers(breakerCfg),
	}

	for _, region := range model.AllRegions {
		ep, ok := endpoints[region]
		if !ok || ep.DatabaseURL == "" {
			zap.L().Info("region not configured", zap.String("region", string(region)))
			continue
		}

		pool, err := dial(ctx, ep)
		if err != nil {
			zap.L().Warn("region dial failed, continuing without it",
				zap.String("region", string(region)),
				zap.Error(err),
			)
			continue
		}
		cl := NewPGClient(region, pool)
		cl.breaker = c.breakers.For(region)
		c.byRegion[region] = cl
		c.closers = append(c.closers, pool.Close)
	}

	return c
}

// NewClientsFromMap builds a registry from pre-built clients (tests and
// the snapshot sync use this with fakes).
func NewClientsFromMap(clients map[model.Region]Client) *Clients {
	byRegion := make(map[model.Region]Client, len(clients))
	for r, cl := range clients {
		byRegion[r] = cl
	}
	return &Clients{byRegion: byRegion}
}

// Get returns the client for a region, or nil when unconfigured.
func (c *Clients) Get(region model.Region) Client {
	return c.byRegion[region]
}

// Configured lists regions with a live client, in AllRegions order.
func (c *Clients) Configured() []model.Region {
	out := make([]model.Region, 0, len(c.byRegion))
	for _, region := range model.AllRegions {
		if _, ok := c.byRegion[region]; ok {
			out = append(out, region)
		}
	}
	return out
}

// BreakerStates reports the circuit state of each configured region's
// breaker. Empty when the registry was built from pre-made clients.
func (c *Clients) BreakerStates() map[string]string {
	out := make(map[string]string)
	if c.breakers == nil {
		return out
	}
	for region, state := range c.breakers.Snapshot() {
		out[string(region)] = state.String()
	}
	return out
}

// Close releases every region pool.
func (c *Clients) Close() {
	for _, fn := range c.closers {
		fn()
	}
}

func dial(ctx context.Context, ep Endpoint) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(ep.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "region: parse config")
	}

	maxConns := int32(4)
	if ep.MaxConns > 0 {
		maxConns = ep.MaxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "region: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "region: ping")
	}
	return pool, nil
}
