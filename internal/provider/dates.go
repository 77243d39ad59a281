package provider

import (
	"fmt"
	"time"

	"github.com/vdem-gis/outage-etl/internal/config"
)

// publishMinutes are the per-hour minutes at which the outage-map systems
// refresh their data files.
var publishMinutes = [4]int{2, 17, 32, 47}

// publishLatencySlack is how long after a boundary a provider may still be
// serving the previous interval's file.
const publishLatencySlack = 2 * time.Minute

// PublishBoundary returns the most recent publish boundary at or before t,
// in t's location. The result is always less than 15 minutes behind t.
func PublishBoundary(t time.Time) time.Time {
	m := t.Minute()
	for i := len(publishMinutes) - 1; i >= 0; i-- {
		if m >= publishMinutes[i] {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), publishMinutes[i], 0, 0, t.Location())
		}
	}
	prev := t.Add(-time.Hour)
	return time.Date(prev.Year(), prev.Month(), prev.Day(), prev.Hour(), publishMinutes[3], 0, 0, t.Location())
}

// CandidateDateStrings produces the ordered, most-likely-first candidate
// date strings for a provider's data URL at the given instant. Pure: no
// network access, no clock reads.
//
// Candidates cover the current and previous publish boundaries, each shifted
// by the provider's known minute offsets and formatted with every configured
// layout and suffix. Providers that lag right after rollover list the
// previous boundary first.
func CandidateDateStrings(now time.Time, rules config.DateRules) ([]string, error) {
	loc, err := rules.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve provider timezone: %w", err)
	}
	local := now.In(loc)

	current := PublishBoundary(local)
	previous := current.Add(-15 * time.Minute)

	boundaries := []time.Time{current, previous}
	if rules.PreferPrevious && local.Sub(current) <= publishLatencySlack {
		boundaries = []time.Time{previous, current}
	}

	seen := make(map[string]bool)
	var candidates []string
	for _, b := range boundaries {
		for _, off := range rules.OffsetsMinutes {
			ts := b.Add(time.Duration(off) * time.Minute)
			for _, layout := range rules.Layouts {
				for _, suffix := range rules.Suffixes {
					s := ts.Format(layout) + suffix
					if seen[s] {
						continue
					}
					seen[s] = true
					candidates = append(candidates, s)
				}
			}
		}
	}

	return candidates, nil
}
