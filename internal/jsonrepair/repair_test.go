package jsonrepair

import (
	"errors"
	"testing"
)

func TestParse_Strict(t *testing.T) {
	out, err := Parse(`{"intent": "general", "ask_for": ""}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if out["intent"] != "general" {
		t.Errorf("intent = %v", out["intent"])
	}
}

func TestParse_Fenced(t *testing.T) {
	raw := "```json\n{\"intent\": \"data_query\"}\n```"
	out, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if out["intent"] != "data_query" {
		t.Errorf("intent = %v", out["intent"])
	}
}

func TestParse_BareKeys(t *testing.T) {
	out, err := Parse(`{intent: "data_query", ask_for: "", fields_needed: ["status"]}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if out["intent"] != "data_query" {
		t.Errorf("intent = %v", out["intent"])
	}
}

func TestParse_ColonInValueSurvives(t *testing.T) {
	out, err := Parse(`{note: "time: 10:30 AM"}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if out["note"] != "time: 10:30 AM" {
		t.Errorf("note = %v", out["note"])
	}
}

func TestParse_Unparseable(t *testing.T) {
	_, err := Parse("not json at all {{{")
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("error = %v, want ErrUnparseable", err)
	}
}

func TestStringList(t *testing.T) {
	m := map[string]any{
		"list":  []any{"a", "b"},
		"csv":   "x, y",
		"empty": "",
		"num":   42.0,
	}
	if got := StringList(m, "list"); len(got) != 2 || got[0] != "a" {
		t.Errorf("list = %v", got)
	}
	if got := StringList(m, "csv"); len(got) != 2 || got[1] != "y" {
		t.Errorf("csv = %v", got)
	}
	if got := StringList(m, "empty"); got != nil {
		t.Errorf("empty = %v", got)
	}
	if got := StringList(m, "num"); got != nil {
		t.Errorf("num = %v", got)
	}
}
