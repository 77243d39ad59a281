package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PayloadKind selects the parsing strategy for a provider's feed.
type PayloadKind string

const (
	// PayloadJSON is a plain JSON outage-map report.
	PayloadJSON PayloadKind = "json"
	// PayloadJSWrapped is a JavaScript file with JSON literals assigned to
	// named variables.
	PayloadJSWrapped PayloadKind = "jswrapped"
)

// FieldMap names the provider-specific JSON fields that carry each canonical
// value. CustomersOut may be a dotted path (e.g. "cust_a.val").
type FieldMap struct {
	Locality        string `yaml:"locality"`
	CustomersOut    string `yaml:"customers_out"`
	CustomersServed string `yaml:"customers_served"`
}

// DateRules describes how a provider encodes publish times in its data URLs.
type DateRules struct {
	// Layouts are Go time layouts tried in order, e.g. "2006_01_02_15_04".
	Layouts []string `yaml:"layouts"`
	// Timezone is the IANA zone the provider publishes in. Defaults to UTC.
	Timezone string `yaml:"timezone"`
	// OffsetsMinutes are candidate minute offsets added to the publish
	// boundary. Providers occasionally publish at :03 instead of :02.
	// Defaults to [0, 1, 2].
	OffsetsMinutes []int `yaml:"offsets_minutes"`
	// Suffixes are appended verbatim to each formatted datestring,
	// e.g. ["_00", "_30"]. Defaults to a single empty suffix.
	Suffixes []string `yaml:"suffixes"`
	// PreferPrevious orders the previous boundary first when the current one
	// was reached within the publish-latency window.
	PreferPrevious bool `yaml:"prefer_previous"`
}

// Location resolves the configured timezone.
func (r DateRules) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// ProviderDefinition is the static description of one data source. Loaded at
// process start and immutable afterwards.
type ProviderDefinition struct {
	ID          string      `yaml:"id"`
	DisplayName string      `yaml:"display_name"`
	URLTemplate string      `yaml:"url_template"` // contains "{date}"
	StaticURL   string      `yaml:"static_url"`   // fixed endpoint, no probing
	PayloadKind PayloadKind `yaml:"payload_kind"`
	JSVarName   string      `yaml:"js_var_name"` // variable holding the data literal (jswrapped)
	FieldMap    FieldMap    `yaml:"field_map"`
	DateRules   DateRules   `yaml:"date_rules"`
	// LocalityOverrides maps raw provider names to canonical spellings before
	// normalization, for names that never join cleanly.
	LocalityOverrides map[string]string `yaml:"locality_overrides"`
}

// ProvidersFile is the on-disk provider configuration.
type ProvidersFile struct {
	// Localities is the canonical locality list used for recognition
	// flagging. Optional; empty disables flagging.
	Localities []string             `yaml:"localities"`
	Providers  []ProviderDefinition `yaml:"providers"`
}

// LoadProviders reads and validates the provider configuration. A missing or
// empty file is fatal: without provider definitions there is nothing to run.
func LoadProviders(path string) (*ProvidersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers config: %w", err)
	}

	var pf ProvidersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse providers config: %w", err)
	}
	if len(pf.Providers) == 0 {
		return nil, fmt.Errorf("providers config %s defines no providers", path)
	}

	seen := make(map[string]bool, len(pf.Providers))
	for i := range pf.Providers {
		def := &pf.Providers[i]
		if err := validateProvider(def); err != nil {
			return nil, fmt.Errorf("provider %q: %w", def.ID, err)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("duplicate provider id %q", def.ID)
		}
		seen[def.ID] = true
	}

	return &pf, nil
}

func validateProvider(def *ProviderDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("missing id")
	}
	if def.DisplayName == "" {
		return fmt.Errorf("missing display_name")
	}

	switch {
	case def.URLTemplate != "" && def.StaticURL != "":
		return fmt.Errorf("url_template and static_url are mutually exclusive")
	case def.URLTemplate != "":
		if !strings.Contains(def.URLTemplate, "{date}") {
			return fmt.Errorf("url_template must contain a {date} placeholder")
		}
		if len(def.DateRules.Layouts) == 0 {
			return fmt.Errorf("url_template requires date_rules.layouts")
		}
		if _, err := def.DateRules.Location(); err != nil {
			return fmt.Errorf("date_rules.timezone: %w", err)
		}
		for _, off := range def.DateRules.OffsetsMinutes {
			if off < 0 || off >= 15 {
				return fmt.Errorf("date_rules.offsets_minutes must be in [0, 15)")
			}
		}
	case def.StaticURL != "":
		// Static endpoints skip probing entirely.
	default:
		return fmt.Errorf("either url_template or static_url is required")
	}

	switch def.PayloadKind {
	case PayloadJSON:
		applyFieldMapDefaults(&def.FieldMap)
	case PayloadJSWrapped:
		if def.JSVarName == "" {
			return fmt.Errorf("jswrapped payload requires js_var_name")
		}
	default:
		return fmt.Errorf("unknown payload_kind %q", def.PayloadKind)
	}

	if len(def.DateRules.OffsetsMinutes) == 0 {
		def.DateRules.OffsetsMinutes = []int{0, 1, 2}
	}
	if len(def.DateRules.Suffixes) == 0 {
		def.DateRules.Suffixes = []string{""}
	}

	return nil
}

// applyFieldMapDefaults fills in the field names shared by the S3 outage-map
// providers.
func applyFieldMapDefaults(fm *FieldMap) {
	if fm.Locality == "" {
		fm.Locality = "area_name"
	}
	if fm.CustomersOut == "" {
		fm.CustomersOut = "cust_a.val"
	}
	if fm.CustomersServed == "" {
		fm.CustomersServed = "cust_s"
	}
}
