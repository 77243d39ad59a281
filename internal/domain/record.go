package domain

import "time"

// OutageRecord is the canonical per-provider, per-locality outage report for
// one run.
type OutageRecord struct {
	Provider        string    `json:"provider"`
	Locality        string    `json:"locality"` // raw name as reported by the provider
	LocalityKey     string    `json:"locality_key"`
	JoinKey         string    `json:"join_key"` // provider+locality key used by GIS feature classes
	CustomersOut    int       `json:"customers_out"`
	CustomersServed *int      `json:"customers_served,omitempty"`
	PercentOut      *float64  `json:"percent_out,omitempty"`
	Unrecognized    bool      `json:"unrecognized,omitempty"` // locality not on the canonical list
	RunTimestamp    time.Time `json:"run_timestamp"`
}

// LocalityRow is one row of the by-locality aggregate view: outage counts
// summed across every provider that reported the locality in this run.
type LocalityRow struct {
	LocalityKey     string    `json:"locality_key"`
	CustomersOut    int       `json:"customers_out"`
	CustomersServed *int      `json:"customers_served,omitempty"` // nil when no provider reported served
	PercentOut      *float64  `json:"percent_out,omitempty"`
	Providers       int       `json:"providers"` // providers contributing to this row
	RunTimestamp    time.Time `json:"run_timestamp"`
}

// Snapshot holds the two canonical aggregate views produced by one run.
type Snapshot struct {
	ByProviderAndLocality []OutageRecord `json:"by_provider_and_locality"`
	ByLocality            []LocalityRow  `json:"by_locality"`
}

// ProviderStatus is the terminal state of one provider's pipeline for a run.
type ProviderStatus string

const (
	StatusSucceeded ProviderStatus = "succeeded"
	StatusPartial   ProviderStatus = "partial" // some locality entries were skipped
	StatusFailed    ProviderStatus = "failed"
)

// ProviderOutcome reports how one provider's probe/fetch/parse pipeline ended.
type ProviderOutcome struct {
	Provider       string         `json:"provider"`
	Status         ProviderStatus `json:"status"`
	Reason         string         `json:"reason,omitempty"` // populated when Status is failed
	EndpointURL    string         `json:"endpoint_url,omitempty"`
	Records        int            `json:"records"`
	SkippedRecords int            `json:"skipped_records"`
}

// RunResult is the complete output of one scheduled run: the snapshot plus
// per-provider outcomes so consumers can distinguish "zero outages" from
// "no data".
type RunResult struct {
	RunID        string            `json:"run_id"`
	RunTimestamp time.Time         `json:"run_timestamp"`
	Outcomes     []ProviderOutcome `json:"outcomes"`
	Snapshot     Snapshot          `json:"snapshot"`
	Conflicts    int               `json:"conflicts"` // duplicate-key resolutions during aggregation
}

// SucceededCount returns the number of providers that reached succeeded or
// partial state. Partial counts: the provider contributed data to the snapshot.
func (r RunResult) SucceededCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusSucceeded || o.Status == StatusPartial {
			n++
		}
	}
	return n
}

// FailedProviders returns the identifiers of providers that produced no data
// this run.
func (r RunResult) FailedProviders() []string {
	var failed []string
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o.Provider)
		}
	}
	return failed
}

// DerivePercent computes customers_out / customers_served, or nil when the
// served figure is unknown or zero.
func DerivePercent(out int, served *int) *float64 {
	if served == nil || *served <= 0 {
		return nil
	}
	p := float64(out) / float64(*served)
	return &p
}
