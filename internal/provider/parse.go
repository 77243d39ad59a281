package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vdem-gis/outage-etl/internal/config"
	"github.com/vdem-gis/outage-etl/internal/domain"
)

// ParseResult holds the canonical records decoded from one provider payload
// plus the count of malformed locality entries that were skipped.
type ParseResult struct {
	Records []domain.OutageRecord
	Skipped int
}

// ParsePayload decodes a raw provider payload into canonical outage records,
// dispatching on the provider's declared payload kind. A completely
// undecodable payload returns a DecodeError; individual malformed locality
// entries are skipped and counted in Skipped.
func ParsePayload(def config.ProviderDefinition, payload []byte, norm *domain.Normalizer, runTS time.Time) (ParseResult, error) {
	switch def.PayloadKind {
	case config.PayloadJSON:
		return parseOutageMap(def, payload, norm, runTS)
	case config.PayloadJSWrapped:
		return parseScriptFeed(def, payload, norm, runTS)
	default:
		return ParseResult{}, &DecodeError{Provider: def.ID, Err: fmt.Errorf("unknown payload kind %q", def.PayloadKind)}
	}
}

// outageMapEnvelope is the fixed outer structure of the S3 outage-map
// reports. Leaf field names vary per provider and come from the field map.
type outageMapEnvelope struct {
	FileData struct {
		Areas []struct {
			Areas []json.RawMessage `json:"areas"`
		} `json:"areas"`
	} `json:"file_data"`
}

// parseOutageMap decodes the nested region/locality JSON used by the S3
// outage-map providers: file_data.areas[0].areas[] are regions, each holding
// its own areas[] of localities.
func parseOutageMap(def config.ProviderDefinition, payload []byte, norm *domain.Normalizer, runTS time.Time) (ParseResult, error) {
	var env outageMapEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return ParseResult{}, &DecodeError{Provider: def.ID, Err: err}
	}
	if len(env.FileData.Areas) == 0 {
		return ParseResult{}, &DecodeError{Provider: def.ID, Err: errors.New("missing file_data.areas")}
	}

	var res ParseResult
	for _, regionRaw := range env.FileData.Areas[0].Areas {
		var region struct {
			Areas []map[string]any `json:"areas"`
		}
		if err := json.Unmarshal(regionRaw, &region); err != nil {
			res.Skipped++
			continue
		}
		for _, area := range region.Areas {
			rec, err := mappedRecord(def, area, norm, runTS)
			if err != nil {
				res.Skipped++
				continue
			}
			res.Records = append(res.Records, rec)
		}
	}
	return res, nil
}

// mappedRecord builds one canonical record from a locality object using the
// provider's field map.
func mappedRecord(def config.ProviderDefinition, fields map[string]any, norm *domain.Normalizer, runTS time.Time) (domain.OutageRecord, error) {
	name, ok := lookupString(fields, def.FieldMap.Locality)
	if !ok || strings.TrimSpace(name) == "" {
		return domain.OutageRecord{}, errors.New("missing locality name")
	}
	out, ok := lookupInt(fields, def.FieldMap.CustomersOut)
	if !ok || out < 0 {
		return domain.OutageRecord{}, fmt.Errorf("bad customers-out value for %q", name)
	}

	var served *int
	if v, ok := lookupInt(fields, def.FieldMap.CustomersServed); ok {
		if v < 0 {
			return domain.OutageRecord{}, fmt.Errorf("bad customers-served value for %q", name)
		}
		served = &v
	}
	if served != nil && out > *served {
		return domain.OutageRecord{}, fmt.Errorf("customers out %d exceeds served %d for %q", out, *served, name)
	}

	return newRecord(def, def.DisplayName, name, out, served, norm, runTS), nil
}

// parseScriptFeed decodes the co-op JavaScript feed: a variable assignment
// whose value is a JSON object mapping co-op IDs to company blocks with
// per-county outage counts. Served counts are not published by this feed.
func parseScriptFeed(def config.ProviderDefinition, payload []byte, norm *domain.Normalizer, runTS time.Time) (ParseResult, error) {
	literal, err := extractJSLiteral(string(payload), def.JSVarName)
	if err != nil {
		return ParseResult{}, &DecodeError{Provider: def.ID, Err: err}
	}

	var feed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(literal), &feed); err != nil {
		return ParseResult{}, &DecodeError{Provider: def.ID, Err: err}
	}

	// Sort co-op IDs so output order is deterministic; counties keep their
	// document order within each company.
	ids := make([]string, 0, len(feed))
	for id := range feed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var res ParseResult
	for _, id := range ids {
		var entry struct {
			Company string           `json:"company"`
			County  []map[string]any `json:"county"`
		}
		if err := json.Unmarshal(feed[id], &entry); err != nil || entry.Company == "" {
			res.Skipped++
			continue
		}
		for _, county := range entry.County {
			name, ok := lookupString(county, "name")
			if !ok || strings.TrimSpace(name) == "" {
				res.Skipped++
				continue
			}
			out, ok := lookupInt(county, "outage")
			if !ok || out < 0 {
				res.Skipped++
				continue
			}
			res.Records = append(res.Records, newRecord(def, entry.Company, name, out, nil, norm, runTS))
		}
	}
	return res, nil
}

// newRecord assembles a canonical record. Locality overrides apply before
// normalization so chronically mis-spelled names still join; the raw name is
// preserved on the record for investigation.
func newRecord(def config.ProviderDefinition, providerName, rawName string, out int, served *int, norm *domain.Normalizer, runTS time.Time) domain.OutageRecord {
	nameForKey := rawName
	if o, ok := def.LocalityOverrides[rawName]; ok {
		nameForKey = o
	}
	key, recognized := norm.Normalize(nameForKey)

	return domain.OutageRecord{
		Provider:        providerName,
		Locality:        rawName,
		LocalityKey:     key,
		JoinKey:         domain.JoinKey(providerName, nameForKey),
		CustomersOut:    out,
		CustomersServed: served,
		PercentOut:      domain.DerivePercent(out, served),
		Unrecognized:    !recognized,
		RunTimestamp:    runTS,
	}
}

// extractJSLiteral locates "var <name> = <literal>" in script text and
// returns the balanced JSON literal that follows the assignment, tolerating
// trailing statements, semicolons, and comments.
func extractJSLiteral(src, varName string) (string, error) {
	idx := strings.Index(src, varName)
	if idx < 0 {
		return "", fmt.Errorf("variable %q not found in script", varName)
	}
	rest := src[idx+len(varName):]

	eq := strings.Index(rest, "=")
	if eq < 0 {
		return "", fmt.Errorf("no assignment to %q", varName)
	}
	rest = strings.TrimLeft(rest[eq+1:], " \t\r\n")
	if rest == "" || (rest[0] != '{' && rest[0] != '[') {
		return "", fmt.Errorf("assignment to %q is not an object or array literal", varName)
	}

	end, err := balancedEnd(rest)
	if err != nil {
		return "", fmt.Errorf("literal assigned to %q: %w", varName, err)
	}
	return rest[:end], nil
}

// balancedEnd scans a JSON object/array literal at the start of s and
// returns the index just past its closing bracket, tracking string and
// escape state so braces inside strings don't count.
func balancedEnd(s string) (int, error) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, errors.New("unbalanced literal")
}

// lookupString resolves a dotted field path to a string value.
func lookupString(fields map[string]any, path string) (string, bool) {
	v, ok := lookup(fields, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// lookupInt resolves a dotted field path to a non-fractional integer,
// coercing JSON numbers and numeric strings.
func lookupInt(fields map[string]any, path string) (int, bool) {
	v, ok := lookup(fields, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// lookup walks a dotted path ("cust_a.val") through nested JSON objects.
func lookup(fields map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = fields
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}
