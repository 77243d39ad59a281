// Command genfixtures generates deterministic provider payload fixtures for
// the validation tooling and local development. It writes one fixture per
// configured provider, shaped exactly like the live feeds: the nested
// region/locality JSON for outage-map providers and a variable-assignment
// script for the co-op feed. It then runs the actual parser over each fixture
// and prints stats, so test assertions can be updated from its output.
//
// Usage:
//
//	go run ./cmd/genfixtures -providers providers.yaml -out data/fixtures
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vdem-gis/outage-etl/internal/config"
	"github.com/vdem-gis/outage-etl/internal/domain"
	"github.com/vdem-gis/outage-etl/internal/provider"
)

// fixtureSeed is one locality's outage figures in the generated payloads.
type fixtureSeed struct {
	locality string
	out      int
	served   int // 0 means omit (co-op feeds publish no served counts)
}

// seeds produce a spread of magnitudes: a big event, mid-size ones, and
// several zero rows, which is what the live feeds look like outside storms.
var jsonSeeds = [][]fixtureSeed{
	{
		{locality: "Fairfax", out: 1204, served: 412345},
		{locality: "Loudoun", out: 310, served: 198221},
		{locality: "Prince William", out: 87, served: 176554},
	},
	{
		{locality: "Henrico", out: 45, served: 143002},
		{locality: "Chesterfield", out: 0, served: 151780},
		{locality: "Richmond", out: 12, served: 110340},
	},
}

var coopSeeds = map[string]struct {
	company  string
	counties []fixtureSeed
}{
	"anec": {
		company: "A and N Electric Cooperative",
		counties: []fixtureSeed{
			{locality: "Accomack", out: 58},
			{locality: "Northampton", out: 0},
		},
	},
	"rec": {
		company: "Rappahannock Electric Cooperative",
		counties: []fixtureSeed{
			{locality: "Caroline", out: 133},
			{locality: "Spotsylvania", out: 71},
			{locality: "Louisa", out: 9},
		},
	},
	"svec": {
		company: "Shenandoah Valley Electric Cooperative",
		counties: []fixtureSeed{
			{locality: "Rockingham", out: 24},
			{locality: "Augusta", out: 0},
		},
	},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	providersPath := flag.String("providers", "providers.yaml", "path to the providers config")
	outDir := flag.String("out", "data/fixtures", "output directory for fixture payloads")
	flag.Parse()

	pf, err := config.LoadProviders(*providersPath)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}

	// Fixed clock so fixture run timestamps are reproducible.
	runTS := time.Date(2026, time.February, 10, 14, 17, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(runTS))
	defer domain.SetClock(nil)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	norm := domain.NewNormalizer(pf.Localities)
	var allRecords []domain.OutageRecord

	for _, def := range pf.Providers {
		payload, path, err := buildFixture(def, *outDir)
		if err != nil {
			return fmt.Errorf("provider %s: %w", def.ID, err)
		}
		if err := os.WriteFile(path, payload, 0o600); err != nil {
			return fmt.Errorf("write fixture %s: %w", path, err)
		}

		res, err := provider.ParsePayload(def, payload, norm, runTS)
		if err != nil {
			return fmt.Errorf("generated fixture for %s does not parse: %w", def.ID, err)
		}
		allRecords = append(allRecords, res.Records...)
		log.Printf("%s: wrote %s (%d records, %d skipped)", def.ID, path, len(res.Records), res.Skipped)
	}

	printStats(allRecords)
	return nil
}

// buildFixture renders one provider's payload and returns it with its output
// path.
func buildFixture(def config.ProviderDefinition, outDir string) ([]byte, string, error) {
	switch def.PayloadKind {
	case config.PayloadJSON:
		payload, err := buildOutageMap(def)
		return payload, filepath.Join(outDir, def.ID+".json"), err
	case config.PayloadJSWrapped:
		payload, err := buildScriptFeed(def)
		return payload, filepath.Join(outDir, def.ID+".js"), err
	default:
		return nil, "", fmt.Errorf("unknown payload kind %q", def.PayloadKind)
	}
}

// buildOutageMap assembles the nested file_data.areas envelope using the
// provider's own field map, one region per seed group.
func buildOutageMap(def config.ProviderDefinition) ([]byte, error) {
	regions := make([]map[string]any, 0, len(jsonSeeds))
	for _, group := range jsonSeeds {
		areas := make([]map[string]any, 0, len(group))
		for _, s := range group {
			area := map[string]any{}
			setPath(area, def.FieldMap.Locality, s.locality)
			setPath(area, def.FieldMap.CustomersOut, s.out)
			setPath(area, def.FieldMap.CustomersServed, s.served)
			areas = append(areas, area)
		}
		regions = append(regions, map[string]any{"areas": areas})
	}

	envelope := map[string]any{
		"file_data": map[string]any{
			"areas": []any{map[string]any{"areas": regions}},
		},
	}
	return json.MarshalIndent(envelope, "", "  ")
}

// buildScriptFeed renders the co-op feed: JSON literals assigned to script
// variables, with the surrounding statements the live file carries.
func buildScriptFeed(def config.ProviderDefinition) ([]byte, error) {
	feed := map[string]any{}
	for id, coop := range coopSeeds {
		counties := make([]map[string]any, 0, len(coop.counties))
		for _, c := range coop.counties {
			counties = append(counties, map[string]any{"name": c.locality, "outage": c.out})
		}
		feed[id] = map[string]any{"company": coop.company, "county": counties}
	}

	literal, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, err
	}

	script := fmt.Sprintf("// statewide cooperative outage feed\nvar updated = \"2026-02-10 14:17\";\nvar %s = %s;\n", def.JSVarName, literal)
	return []byte(script), nil
}

// setPath writes a value at a dotted path, creating intermediate objects.
func setPath(obj map[string]any, path string, value any) {
	for {
		dot := -1
		for i := 0; i < len(path); i++ {
			if path[i] == '.' {
				dot = i
				break
			}
		}
		if dot < 0 {
			obj[path] = value
			return
		}
		next, ok := obj[path[:dot]].(map[string]any)
		if !ok {
			next = map[string]any{}
			obj[path[:dot]] = next
		}
		obj, path = next, path[dot+1:]
	}
}

func printStats(records []domain.OutageRecord) {
	agg := domain.Aggregate(records)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total records: %d\n", len(records))
	fmt.Printf("Localities: %d\n", len(agg.Snapshot.ByLocality))
	fmt.Printf("Conflicts: %d\n", len(agg.Conflicts))

	totalOut := 0
	unrecognized := 0
	for _, r := range records {
		totalOut += r.CustomersOut
		if r.Unrecognized {
			unrecognized++
		}
	}
	fmt.Printf("Customers out: %d\n", totalOut)
	fmt.Printf("Unrecognized localities: %d\n", unrecognized)

	fmt.Println("\nBy locality:")
	for _, row := range agg.Snapshot.ByLocality {
		served := "-"
		if row.CustomersServed != nil {
			served = fmt.Sprintf("%d", *row.CustomersServed)
		}
		fmt.Printf("  %-20s out=%-6d served=%-8s providers=%d\n",
			row.LocalityKey, row.CustomersOut, served, row.Providers)
	}
}
