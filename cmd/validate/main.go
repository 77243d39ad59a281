// Command validate performs integrity checks across the collector's static
// inputs and parsing pipeline: the providers config, the fixture payloads,
// the canonical record invariants, and the aggregation round trip. Run it
// after editing providers.yaml or regenerating fixtures.
//
// Usage:
//
//	go run ./cmd/validate -providers providers.yaml -fixtures data/fixtures
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vdem-gis/outage-etl/internal/config"
	"github.com/vdem-gis/outage-etl/internal/domain"
	"github.com/vdem-gis/outage-etl/internal/provider"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	providersPath := flag.String("providers", "providers.yaml", "path to the providers config")
	fixturesDir := flag.String("fixtures", "data/fixtures", "directory containing fixture payloads")
	flag.Parse()

	os.Exit(run(*providersPath, *fixturesDir))
}

func run(providersPath, fixturesDir string) int {
	// Fixed clock matching genfixtures so record timestamps line up.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.February, 10, 14, 17, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Outage Collector Integrity Validation ===")
	fmt.Println()

	pf, err := config.LoadProviders(providersPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load providers config: %v\n", err)
		return 1
	}

	norm := domain.NewNormalizer(pf.Localities)
	runTS := domain.Now()

	records, parsePhase := parseFixtures(pf, norm, fixturesDir, runTS)

	phases := []*phase{
		validateProviderConfig(pf),
		parsePhase,
		validateRecordInvariants(records),
		validateAggregation(records),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Providers: %d, fixture records: %d, canonical localities: %d\n",
		len(pf.Providers), len(records), len(pf.Localities))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Provider Config ──
// Checks beyond what LoadProviders enforces: probe cost and date coverage.

func validateProviderConfig(pf *config.ProvidersFile) *phase {
	p := &phase{name: "Phase 1: Provider Config"}

	for _, def := range pf.Providers {
		if def.StaticURL != "" {
			continue
		}

		candidates, err := provider.CandidateDateStrings(domain.Now(), def.DateRules)
		if err != nil {
			p.errorf("%s: candidate generation failed: %v", def.ID, err)
			continue
		}
		if len(candidates) == 0 {
			p.errorf("%s: date rules produce no candidates", def.ID)
		}
		// Every candidate becomes an HTTP probe in the worst case; a config
		// that generates dozens per run is a misconfiguration.
		if len(candidates) > 32 {
			p.errorf("%s: date rules produce %d candidates per run, expected at most 32", def.ID, len(candidates))
		}

		seen := map[string]bool{}
		for _, c := range candidates {
			if seen[c] {
				p.errorf("%s: duplicate candidate %q", def.ID, c)
			}
			seen[c] = true
		}
	}

	// Locality overrides must map onto the canonical list, or the override is
	// pointless.
	canonical := map[string]bool{}
	for _, l := range pf.Localities {
		canonical[domain.NormalizeLocality(l)] = true
	}
	if len(canonical) > 0 {
		for _, def := range pf.Providers {
			for raw, override := range def.LocalityOverrides {
				if !canonical[domain.NormalizeLocality(override)] {
					p.errorf("%s: override %q -> %q does not resolve to a canonical locality", def.ID, raw, override)
				}
			}
		}
	}

	return p
}

// ── Phase 2: Fixture Parsing ──
// Runs the real parser over each provider's fixture payload.

func parseFixtures(pf *config.ProvidersFile, norm *domain.Normalizer, dir string, runTS time.Time) ([]domain.OutageRecord, *phase) {
	p := &phase{name: "Phase 2: Fixture Parsing"}

	var records []domain.OutageRecord
	for _, def := range pf.Providers {
		ext := ".json"
		if def.PayloadKind == config.PayloadJSWrapped {
			ext = ".js"
		}
		path := filepath.Join(dir, def.ID+ext)

		payload, err := os.ReadFile(path)
		if err != nil {
			p.errorf("%s: read fixture: %v", def.ID, err)
			continue
		}

		res, err := provider.ParsePayload(def, payload, norm, runTS)
		if err != nil {
			p.errorf("%s: parse fixture: %v", def.ID, err)
			continue
		}
		if len(res.Records) == 0 {
			p.errorf("%s: fixture yields zero records", def.ID)
		}
		if res.Skipped > 0 {
			p.errorf("%s: fixture has %d malformed entries, fixtures must be clean", def.ID, res.Skipped)
		}
		records = append(records, res.Records...)
	}

	return records, p
}

// ── Phase 3: Record Invariants ──

func validateRecordInvariants(records []domain.OutageRecord) *phase {
	p := &phase{name: "Phase 3: Record Invariants"}

	for i, r := range records {
		if r.Provider == "" {
			p.errorf("record %d: empty provider", i)
		}
		if r.Locality == "" {
			p.errorf("record %d: empty locality", i)
		}
		if r.LocalityKey == "" {
			p.errorf("record %d (%s): empty locality key", i, r.Locality)
		}
		if r.JoinKey == "" {
			p.errorf("record %d (%s): empty join key", i, r.Locality)
		}
		if r.CustomersOut < 0 {
			p.errorf("record %d (%s): negative customers out", i, r.Locality)
		}
		if r.CustomersServed != nil && r.CustomersOut > *r.CustomersServed {
			p.errorf("record %d (%s): out %d exceeds served %d", i, r.Locality, r.CustomersOut, *r.CustomersServed)
		}

		expected := domain.DerivePercent(r.CustomersOut, r.CustomersServed)
		switch {
		case expected == nil && r.PercentOut != nil:
			p.errorf("record %d (%s): percent set without served count", i, r.Locality)
		case expected != nil && r.PercentOut == nil:
			p.errorf("record %d (%s): percent missing", i, r.Locality)
		case expected != nil && math.Abs(*expected-*r.PercentOut) > 1e-9:
			p.errorf("record %d (%s): percent %g, expected %g", i, r.Locality, *r.PercentOut, *expected)
		}

		if r.RunTimestamp.IsZero() {
			p.errorf("record %d (%s): zero run timestamp", i, r.Locality)
		}
	}

	return p
}

// ── Phase 4: Aggregation Round Trip ──

func validateAggregation(records []domain.OutageRecord) *phase {
	p := &phase{name: "Phase 4: Aggregation Round Trip"}

	agg := domain.Aggregate(records)

	// Customers counted once in a record land once in the locality view.
	recordTotal := 0
	for _, r := range agg.Snapshot.ByProviderAndLocality {
		recordTotal += r.CustomersOut
	}
	rowTotal := 0
	for _, row := range agg.Snapshot.ByLocality {
		rowTotal += row.CustomersOut
	}
	if recordTotal != rowTotal {
		p.errorf("customers out: records sum to %d, locality rows sum to %d", recordTotal, rowTotal)
	}

	// Provider contributions per row must sum to the record count.
	contributions := 0
	for _, row := range agg.Snapshot.ByLocality {
		contributions += row.Providers
	}
	if contributions != len(agg.Snapshot.ByProviderAndLocality) {
		p.errorf("provider contributions sum to %d, expected %d", contributions, len(agg.Snapshot.ByProviderAndLocality))
	}

	for i := 1; i < len(agg.Snapshot.ByLocality); i++ {
		if agg.Snapshot.ByLocality[i-1].LocalityKey >= agg.Snapshot.ByLocality[i].LocalityKey {
			p.errorf("locality rows not sorted at index %d: %q >= %q",
				i, agg.Snapshot.ByLocality[i-1].LocalityKey, agg.Snapshot.ByLocality[i].LocalityKey)
		}
	}

	if len(agg.Conflicts) > 0 {
		p.errorf("fixtures contain %d duplicate provider/locality keys", len(agg.Conflicts))
	}

	return p
}
