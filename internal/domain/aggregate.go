package domain

import "sort"

// Conflict records a duplicate (provider, locality) key resolved during
// aggregation. The later occurrence in document order wins.
type Conflict struct {
	Provider    string
	LocalityKey string
}

// AggregateResult holds the two canonical views plus any duplicate-key
// resolutions encountered while building them.
type AggregateResult struct {
	Snapshot  Snapshot
	Conflicts []Conflict
}

// Aggregate merges the successfully parsed records of one run into the
// by-provider-and-locality view (identity projection after de-duplication)
// and the by-locality view (counts summed across providers, grouped by
// normalized locality key).
//
// When a provider reports the same locality twice within one payload, the
// later record replaces the earlier one and a Conflict is recorded. Records
// keep document order; locality rows are sorted by key for deterministic
// output.
func Aggregate(records []OutageRecord) AggregateResult {
	var res AggregateResult

	// De-duplicate per (provider, locality key), last occurrence wins.
	type dupKey struct{ provider, locality string }
	seen := make(map[dupKey]int, len(records))
	deduped := make([]OutageRecord, 0, len(records))
	for _, rec := range records {
		k := dupKey{rec.Provider, rec.LocalityKey}
		if i, ok := seen[k]; ok {
			deduped[i] = rec
			res.Conflicts = append(res.Conflicts, Conflict{Provider: rec.Provider, LocalityKey: rec.LocalityKey})
			continue
		}
		seen[k] = len(deduped)
		deduped = append(deduped, rec)
	}
	res.Snapshot.ByProviderAndLocality = deduped

	// Sum per locality key.
	byLocality := make(map[string]*LocalityRow, len(deduped))
	for _, rec := range deduped {
		row, ok := byLocality[rec.LocalityKey]
		if !ok {
			row = &LocalityRow{LocalityKey: rec.LocalityKey, RunTimestamp: rec.RunTimestamp}
			byLocality[rec.LocalityKey] = row
		}
		row.CustomersOut += rec.CustomersOut
		if rec.CustomersServed != nil {
			if row.CustomersServed == nil {
				row.CustomersServed = new(int)
			}
			*row.CustomersServed += *rec.CustomersServed
		}
		row.Providers++
	}

	keys := make([]string, 0, len(byLocality))
	for k := range byLocality {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]LocalityRow, 0, len(keys))
	for _, k := range keys {
		row := byLocality[k]
		row.PercentOut = DerivePercent(row.CustomersOut, row.CustomersServed)
		rows = append(rows, *row)
	}
	res.Snapshot.ByLocality = rows

	return res
}
