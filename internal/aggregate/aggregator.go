package aggregate

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
	"github.com/mktbiz-byte/cnec-platform/internal/region"
)

// defaultProfileTable is the primary creator table every region exposes.
const defaultProfileTable = "user_profiles"

// Cache stores a recent aggregate result. Implementations must treat
// their own failures as soft: a cache miss and a cache error look the
// same to the aggregator.
type Cache interface {
	GetAggregate(ctx context.Context) (*model.AggregateResult, bool)
	SetAggregate(ctx context.Context, result *model.AggregateResult)
}

// Options tunes an Aggregator. The zero value is production behavior.
type Options struct {
	// ProfileTable overrides the primary table name.
	ProfileTable string

	// Supplements maps regions to their secondary backfill source.
	// Nil means DefaultSupplements; an empty map disables backfill.
	Supplements map[model.Region]SupplementSource

	// Cache, when non-nil, short-circuits repeated aggregation.
	Cache Cache

	// SupplementRate limits secondary-table queries across regions.
	// Zero means no limit.
	SupplementRate rate.Limit
}

// Aggregator produces the merged multi-region creator view. It owns no
// mutable state beyond its configuration; AggregateCreators is safe to
// call concurrently.
type Aggregator struct {
	clients     *region.Clients
	table       string
	supplements map[model.Region]SupplementSource
	cache       Cache
	limiter     *rate.Limiter
}

// New builds an Aggregator over the given region clients.
func New(clients *region.Clients, opts Options) *Aggregator {
	table := opts.ProfileTable
	if table == "" {
		table = defaultProfileTable
	}
	supplements := opts.Supplements
	if supplements == nil {
		supplements = DefaultSupplements()
	}
	var limiter *rate.Limiter
	if opts.SupplementRate > 0 {
		limiter = rate.NewLimiter(opts.SupplementRate, 1)
	}
	return &Aggregator{
		clients:     clients,
		table:       table,
		supplements: supplements,
		cache:       opts.Cache,
		limiter:     limiter,
	}
}

// AggregateCreators fetches every configured region concurrently,
// normalizes and backfills the rows, and merges them into one result.
//
// The join is all-complete: every region's outcome is collected before
// merging, and a failed or unconfigured region contributes an empty
// sequence instead of an error. The returned result always has an entry
// for each known region.
func (a *Aggregator) AggregateCreators(ctx context.Context) (*model.AggregateResult, error) {
	if a.cache != nil {
		if cached, ok := a.cache.GetAggregate(ctx); ok {
			return cached, nil
		}
	}

	var mu sync.Mutex
	fetched := make(map[model.Region][]model.Creator, len(model.AllRegions))

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range model.AllRegions {
		g.Go(func() error {
			creators := a.fetchRegion(gctx, r)
			mu.Lock()
			fetched[r] = creators
			mu.Unlock()
			// Failures are absorbed per region; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	result := merge(fetched)
	if a.cache != nil {
		a.cache.SetAggregate(ctx, result)
	}
	return result, nil
}

// CreatorsByRegion fetches and normalizes a single region.
func (a *Aggregator) CreatorsByRegion(ctx context.Context, r model.Region) []model.Creator {
	return a.fetchRegion(ctx, r)
}

// RegionHealth reports which regions are configured and the circuit
// state of each region's breaker.
func (a *Aggregator) RegionHealth() (configured []model.Region, breakers map[string]string) {
	return a.clients.Configured(), a.clients.BreakerStates()
}

// fetchRegion runs the two-phase pipeline for one region: primary
// profile fetch, then supplement backfill keyed by the primary IDs.
// Every failure path degrades to fewer (or zero) records.
func (a *Aggregator) fetchRegion(ctx context.Context, r model.Region) []model.Creator {
	client := a.clients.Get(r)
	if client == nil {
		return []model.Creator{}
	}

	rows, err := client.Query(ctx, a.table, region.QueryOptions{
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		zap.L().Warn("aggregate: region fetch failed",
			zap.String("region", string(r)),
			zap.Error(err),
		)
		return []model.Creator{}
	}

	creators := make([]model.Creator, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		c := NormalizeRecord(row, r)
		creators = append(creators, c)
		if c.ID != "" {
			ids = append(ids, c.ID)
		}
	}

	src, ok := a.supplements[r]
	if !ok || len(ids) == 0 {
		return creators
	}

	index := a.fetchSupplementIndex(ctx, client, src, ids)
	if index == nil {
		return creators
	}
	for i := range creators {
		creators[i] = FillFromSupplement(creators[i], index)
	}
	return creators
}

func (a *Aggregator) fetchSupplementIndex(ctx context.Context, client region.Client, src SupplementSource, ids []string) map[string]model.RawRecord {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil
		}
	}

	rows, err := client.Query(ctx, src.Table, region.QueryOptions{
		Filters:    map[string]any{src.KeyField: ids},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		zap.L().Warn("aggregate: supplement fetch failed",
			zap.String("region", string(client.Region())),
			zap.String("table", src.Table),
			zap.Error(err),
		)
		return nil
	}
	return BuildSupplementIndex(rows, src.KeyField)
}

// merge assembles the final result from per-region sequences. Pure; the
// aggregation pipeline above is a concurrency shell around this.
func merge(fetched map[model.Region][]model.Creator) *model.AggregateResult {
	result := model.NewAggregateResult()
	for _, r := range model.AllRegions {
		creators := fetched[r]
		if creators == nil {
			creators = []model.Creator{}
		}
		result.ByRegion[r] = creators
		result.Counts[r] = len(creators)
		result.Total += len(creators)
	}
	return result
}
