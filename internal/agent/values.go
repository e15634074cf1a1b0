package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rkarthik/bloodlink/internal/graphql"
)

const valueCacheTTL = 5 * time.Minute

// Blood components are a fixed product catalog, not a database value.
var bloodComponents = []string{
	"Packed Red Cells",
	"Fresh Frozen Plasma",
	"Platelet Concentrate",
	"Cryoprecipitate",
	"Whole Blood",
	"Single Donor Platelet",
}

const filterValuesQuery = `query FilterValues {
  hospitals: blood_order_view(distinct_on: hospital_name) { hospital_name }
  blood_groups: blood_order_view(distinct_on: blood_group) { blood_group }
  reasons: blood_order_view(distinct_on: reason) { reason }
  statuses: blood_order_view(distinct_on: status) { status }
}`

// valueCatalog supplies the planner with the distinct filter values
// visible to a company. Lookups are deduplicated with singleflight and
// cached briefly; a failed fetch degrades to an empty context instead
// of blocking the turn.
type valueCatalog struct {
	data  DataService
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]valueEntry
}

type valueEntry struct {
	text    string
	fetched time.Time
}

func newValueCatalog(data DataService) *valueCatalog {
	return &valueCatalog{data: data, entries: make(map[string]valueEntry)}
}

func (c *valueCatalog) fieldContext(ctx context.Context, id graphql.Identity) string {
	key := id.CompanyID

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && time.Since(entry.fetched) < valueCacheTTL {
		return entry.text
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := c.data.Run(ctx, id, filterValuesQuery, nil)
		if err != nil {
			return "", err
		}
		text := renderFilterValues(data)
		c.mu.Lock()
		c.entries[key] = valueEntry{text: text, fetched: time.Now()}
		c.mu.Unlock()
		return text, nil
	})
	if err != nil {
		slog.Warn("filter value fetch failed", "company_id", id.CompanyID, "error", err)
		return "KNOWN FIELD VALUES\nblood_component: " + strings.Join(bloodComponents, ", ")
	}
	return v.(string)
}

func renderFilterValues(data map[string]any) string {
	var sb strings.Builder
	sb.WriteString("KNOWN FIELD VALUES\n")
	aliases := []struct{ alias, field string }{
		{"hospitals", "hospital_name"},
		{"blood_groups", "blood_group"},
		{"reasons", "reason"},
		{"statuses", "status"},
	}
	for _, a := range aliases {
		values := distinctValues(data[a.alias], a.field)
		if len(values) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", a.field, strings.Join(values, ", "))
	}
	fmt.Fprintf(&sb, "blood_component: %s", strings.Join(bloodComponents, ", "))
	return sb.String()
}

func distinctValues(v any, field string) []string {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var values []string
	for _, row := range rows {
		rec, ok := row.(map[string]any)
		if !ok {
			continue
		}
		s, ok := rec[field].(string)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		values = append(values, s)
	}
	sort.Strings(values)
	return values
}
