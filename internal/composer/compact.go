// Package composer condenses raw query results into a compact textual
// form before they are handed to the analysis model. Flat pipe-delimited
// records cost far fewer tokens than pretty-printed JSON, and large
// result sets collapse into aggregate summaries.
package composer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// Result sets above this many records are summarized instead of
	// listed row by row.
	summaryThreshold = 20

	maxValueLen = 80
)

var categoricalFields = map[string]bool{
	"blood_group":     true,
	"status":          true,
	"reason":          true,
	"hospital_name":   true,
	"blood_bank_name": true,
	"company_name":    true,
	"blood_component": true,
	"month_year":      true,
}

var numericFields = map[string]bool{
	"age":                true,
	"total_cost":         true,
	"overall_blood_unit": true,
}

// Compact renders raw tool output as flat text. JSON objects in the
// Hasura response shape (root keys mapping to record lists) become
// pipe-delimited lines, one record per line. Result sets larger than
// the summary threshold are reduced to aggregate counts. Anything that
// is not JSON passes through unchanged.
func Compact(raw string) string {
	var root map[string]any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return raw
	}

	var sections []string
	for _, key := range sortedKeys(root) {
		records := recordList(root[key])
		if records == nil {
			sections = append(sections, fmt.Sprintf("%s: %s", key, scalarString(root[key])))
			continue
		}
		if len(records) == 0 {
			sections = append(sections, fmt.Sprintf("%s: no matching records", key))
			continue
		}
		if len(records) > summaryThreshold {
			sections = append(sections, fmt.Sprintf("%s (%d records, summarized):\n%s", key, len(records), summarize(records)))
			continue
		}
		var lines []string
		for _, rec := range records {
			lines = append(lines, flattenRecord(rec))
		}
		sections = append(sections, fmt.Sprintf("%s (%d records):\n%s", key, len(records), strings.Join(lines, "\n")))
	}
	if len(sections) == 0 {
		return raw
	}
	return strings.Join(sections, "\n\n")
}

// flattenRecord renders one record as "key: value | key: value" with
// keys sorted for a stable output. Nested line item lists collapse to
// a unit count.
func flattenRecord(rec map[string]any) string {
	var parts []string
	for _, k := range sortedKeys(rec) {
		v := rec[k]
		if k == "order_line_items" {
			units, n := lineItemUnits(v)
			parts = append(parts, fmt.Sprintf("%s: %d items/%d units", k, n, units))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, scalarString(v)))
	}
	return strings.Join(parts, " | ")
}

type numAgg struct {
	min, max, sum float64
	n             int
}

// summarize reduces a large record list to categorical counts and
// numeric min/max/avg aggregates.
func summarize(records []map[string]any) string {
	counts := make(map[string]map[string]int)
	nums := make(map[string]*numAgg)
	totalUnits := 0
	withItems := 0

	for _, rec := range records {
		for k, v := range rec {
			switch {
			case k == "order_line_items":
				units, n := lineItemUnits(v)
				totalUnits += units
				if n > 0 {
					withItems++
				}
			case categoricalFields[k]:
				s := scalarString(v)
				if counts[k] == nil {
					counts[k] = make(map[string]int)
				}
				counts[k][s]++
			case numericFields[k]:
				f, ok := v.(float64)
				if !ok {
					continue
				}
				agg := nums[k]
				if agg == nil {
					agg = &numAgg{min: f, max: f}
					nums[k] = agg
				}
				if f < agg.min {
					agg.min = f
				}
				if f > agg.max {
					agg.max = f
				}
				agg.sum += f
				agg.n++
			}
		}
	}

	var sb strings.Builder
	for _, field := range sortedCountKeys(counts) {
		var pairs []string
		byValue := counts[field]
		for _, v := range sortedCountValueKeys(byValue) {
			pairs = append(pairs, fmt.Sprintf("%s=%d", v, byValue[v]))
		}
		fmt.Fprintf(&sb, "%s: %s\n", field, strings.Join(pairs, ", "))
	}
	for _, field := range sortedNumKeys(nums) {
		agg := nums[field]
		avg := agg.sum / float64(agg.n)
		fmt.Fprintf(&sb, "%s: min=%s max=%s avg=%s\n", field, trimFloat(agg.min), trimFloat(agg.max), trimFloat(avg))
	}
	if withItems > 0 {
		fmt.Fprintf(&sb, "order_line_items: %d records with items, %d units total\n", withItems, totalUnits)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func recordList(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		records = append(records, rec)
	}
	return records
}

func lineItemUnits(v any) (units, count int) {
	items, ok := v.([]any)
	if !ok {
		// Hasura may hand nested JSON back as a string column.
		if s, ok := v.(string); ok {
			var parsed []any
			if json.Unmarshal([]byte(s), &parsed) == nil {
				return lineItemUnits(parsed)
			}
		}
		return 0, 0
	}
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		count++
		if u, ok := rec["unit"].(float64); ok {
			units += int(u)
		}
	}
	return units, count
}

func scalarString(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		s = t
	case float64:
		s = trimFloat(t)
	case bool:
		s = fmt.Sprintf("%t", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		s = string(b)
	}
	if len(s) > maxValueLen {
		s = s[:maxValueLen] + "..."
	}
	return s
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCountKeys(m map[string]map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCountValueKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedNumKeys(m map[string]*numAgg) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
