// Package domain models electric-outage reports collected from Virginia
// utility provider outage maps.
//
// # Data Sources
//
// Each provider publishes outage counts through its own automated web
// resource, refreshed on a fifteen-minute cadence (:02, :17, :32, :47 past
// the hour, with up to two minutes of publish latency).
//
// Outage-map providers (Dominion, Appalachian Power) host date-encoded JSON
// files on S3:
//
//	.../interval_generation_data/<datestring>/report_region.json
//
// The datestring encodes the publish boundary and is not perfectly
// predictable, so the collector probes a small set of candidates. The JSON
// envelope nests localities two levels deep:
//
//	file_data.areas[0].areas[]  → regions
//	regions[].areas[]           → localities
//	  area_name                 → locality name
//	  cust_s                    → customers served
//	  cust_a.val                → customers out
//
// The co-op federation (VMDAEC) serves a static JavaScript file declaring
// data variables:
//
//	var coop_data = {"<id>": {"company": ..., "county": [{"name", "outage"}]}, ...};
//
// Co-op feeds report no customers-served figure, so percent-out is null for
// those records.
//
// # Locality Keys
//
// Locality names are normalized for joining: lowercased; apostrophes,
// periods, slashes, hyphens and repeated whitespace removed; and a small set
// of leading abbreviations expanded (st → saint, mt → mount, ft → fort).
// Names that do not match the canonical Virginia locality list are kept and
// flagged rather than dropped, so counts survive upstream naming drift.
//
// The provider join key concatenates provider name and locality with all
// special characters stripped, matching the key scheme used by the
// downstream GIS feature classes.
//
// # Aggregate Views
//
// Each run produces two views: one row per (provider, locality) and one row
// per locality with counts summed across providers. Providers that failed
// for the run contribute no rows; the run report lists them so consumers can
// tell "zero outages" from "no data".
package domain
