package stages

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"grant-insights/internal/clients"
	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
	"grant-insights/internal/lookup"
	"grant-insights/internal/metrics"
	"grant-insights/internal/orgid"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/table"
)

// fetchMissing stores the record of every key not yet in category. A failed
// fetch is logged and the key left for a later run; only cache backend
// errors and cancellation stop the loop.
func fetchMissing(ctx context.Context, env *pipeline.Env, category lookup.Category, fetcher clients.Fetcher, keys []string) error {
	logger := env.Logger.WithFields(logging.String("category", string(category)))
	logger.Info(fmt.Sprintf("Finding details for %d %s keys", len(keys), category), logging.Int("keys", len(keys)))
	if len(keys) > 0 && fetcher == nil {
		return errors.ConfigError(fmt.Sprintf("no %s client configured", category))
	}

	var cached, fetched, missing, failed int
	for k, key := range keys {
		env.Progress(k+1, len(keys))

		has, err := env.Lookup.Has(ctx, category, key)
		if err != nil {
			return err
		}
		if has {
			cached++
			continue
		}

		record, err := fetcher.Fetch(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return errors.TimeoutError(fmt.Sprintf("%s lookup", category))
			}
			if errors.IsType(err, errors.ErrTypeNotFound) {
				missing++
				logger.Debug("No record found", logging.String("key", key))
			} else {
				failed++
				logger.Warn("Lookup failed", logging.String("key", key), logging.Err(err))
			}
			continue
		}

		if err := env.Lookup.Set(ctx, category, key, record); err != nil {
			return err
		}
		fetched++
	}

	env.Metrics.Lookup(string(category), metrics.LookupCached, cached)
	env.Metrics.Lookup(string(category), metrics.LookupFetched, fetched)
	env.Metrics.Lookup(string(category), metrics.LookupMissing, missing)
	env.Metrics.Lookup(string(category), metrics.LookupFailed, failed)
	logger.Info("Lookups finished",
		logging.Int("cached", cached),
		logging.Int("fetched", fetched),
		logging.Int("missing", missing),
		logging.Int("failed", failed),
	)
	return nil
}

// cleanIDs returns the distinct clean identifiers of rows whose scheme
// satisfies keep
func cleanIDs(t *table.Table, keep func(scheme string) bool) []string {
	clean := t.Column(RecipientClean)
	schemes := t.Column(RecipientScheme)
	if clean == nil || schemes == nil {
		return nil
	}
	ids := make([]string, 0)
	for i, v := range clean.Values {
		id, _ := v.(string)
		scheme, _ := schemes.Values[i].(string)
		if id != "" && keep(scheme) {
			ids = append(ids, id)
		}
	}
	return lo.Uniq(ids)
}

// LookupCharityDetails fetches the organisation record of every recognised
// clean identifier
func LookupCharityDetails() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Look up charity data",
		Phase: pipeline.Enriching,
		Run:   lookupCharityDetails,
		Skip:  usesAdditionalData,
	}
}

func lookupCharityDetails(ctx context.Context, t *table.Table, env *pipeline.Env) (*table.Table, error) {
	ids := cleanIDs(t, orgid.IsRecognised)
	if err := fetchMissing(ctx, env, lookup.Organisation, env.Organisations, ids); err != nil {
		return nil, err
	}
	return t, nil
}

// LookupCompanyDetails fetches Companies House records for company
// identifiers the organisation resolver did not know. Datasets with more
// companies than the configured limit are not looked up.
func LookupCompanyDetails() pipeline.Stage {
	return pipeline.Stage{
		Name:  "Look up company data",
		Phase: pipeline.Enriching,
		Run:   lookupCompanyDetails,
		Skip:  usesAdditionalData,
	}
}

func lookupCompanyDetails(ctx context.Context, t *table.Table, env *pipeline.Env) (*table.Table, error) {
	known, err := env.Lookup.Keys(ctx, lookup.Organisation)
	if err != nil {
		return nil, err
	}
	resolved := lo.SliceToMap(known, func(k string) (string, struct{}) { return k, struct{}{} })

	ids := lo.Filter(cleanIDs(t, func(s string) bool { return s == orgid.SchemeCompany }), func(id string, _ int) bool {
		_, ok := resolved[id]
		return !ok
	})

	if env.CompanyLimit > 0 && len(ids) > env.CompanyLimit {
		env.Logger.Info(fmt.Sprintf("Skipping company data lookup as there are too many companies (%d)", len(ids)),
			logging.Int("limit", env.CompanyLimit))
		return t, nil
	}
	if err := fetchMissing(ctx, env, lookup.Company, env.Companies, ids); err != nil {
		return nil, err
	}
	return t, nil
}
