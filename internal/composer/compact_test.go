package composer

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestCompact_NonJSONPassesThrough(t *testing.T) {
	raw := "[GraphQL Error] field not found"
	if got := Compact(raw); got != raw {
		t.Errorf("Compact changed non-JSON input: %q", got)
	}
}

func TestCompact_SmallResultSet(t *testing.T) {
	raw := `{"blood_order_view":[
		{"request_id":"ORD-1","blood_group":"A+","status":"PA"},
		{"request_id":"ORD-2","blood_group":"O-","status":"CMP"}
	]}`
	got := Compact(raw)

	if !strings.Contains(got, "blood_order_view (2 records):") {
		t.Errorf("missing record header:\n%s", got)
	}
	if !strings.Contains(got, "blood_group: A+ | request_id: ORD-1 | status: PA") {
		t.Errorf("missing flattened record:\n%s", got)
	}
}

func TestCompact_EmptyResultSet(t *testing.T) {
	got := Compact(`{"blood_order_view":[]}`)
	if !strings.Contains(got, "no matching records") {
		t.Errorf("empty set not reported:\n%s", got)
	}
}

func TestCompact_LineItems(t *testing.T) {
	raw := `{"blood_order_view":[
		{"request_id":"ORD-1","order_line_items":[{"unit":2,"productname":"Packed Red Cells"},{"unit":1,"productname":"Plasma"}]}
	]}`
	got := Compact(raw)
	if !strings.Contains(got, "order_line_items: 2 items/3 units") {
		t.Errorf("line items not collapsed:\n%s", got)
	}
}

func TestCompact_LongValueTruncated(t *testing.T) {
	long := strings.Repeat("x", 120)
	raw := fmt.Sprintf(`{"blood_order_view":[{"reason":%q}]}`, long)
	got := Compact(raw)
	if strings.Contains(got, long) {
		t.Error("long value not truncated")
	}
	if !strings.Contains(got, strings.Repeat("x", 80)+"...") {
		t.Errorf("truncation marker missing:\n%s", got)
	}
}

func TestCompact_LargeResultSummarized(t *testing.T) {
	groups := []string{"A+", "O-", "B+"}
	records := make([]map[string]any, 30)
	for i := range records {
		records[i] = map[string]any{
			"request_id":  fmt.Sprintf("ORD-%d", i),
			"blood_group": groups[i%3],
			"status":      "PA",
			"age":         float64(20 + i),
		}
	}
	raw, err := json.Marshal(map[string]any{"blood_order_view": records})
	if err != nil {
		t.Fatal(err)
	}

	got := Compact(string(raw))
	if !strings.Contains(got, "30 records, summarized") {
		t.Fatalf("large set not summarized:\n%s", got)
	}
	if strings.Contains(got, "ORD-5") {
		t.Error("summary still lists individual records")
	}
	if !strings.Contains(got, "A+=10") {
		t.Errorf("categorical counts missing:\n%s", got)
	}
	if !strings.Contains(got, "age: min=20 max=49") {
		t.Errorf("numeric aggregates missing:\n%s", got)
	}
}
