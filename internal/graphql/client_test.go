package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRun_Headers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-hasura-admin-secret"); got != "secret" {
			t.Errorf("admin secret header = %q", got)
		}
		if got := r.Header.Get("x-hasura-role"); got != "bloodbank" {
			t.Errorf("role header = %q", got)
		}
		if got := r.Header.Get("x-hasura-user-id"); got != "user-1" {
			t.Errorf("user id header = %q", got)
		}
		if got := r.Header.Get("X-Hasura-Company-Id"); got != "company-1" {
			t.Errorf("company id header = %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req["query"] == "" {
			t.Error("empty query in request body")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"blood_order_view":[{"request_id":"ORD-1"}]}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", "bloodbank")
	id := Identity{UserID: "user-1", CompanyID: "company-1"}
	data, err := client.Run(context.Background(), id, "query { blood_order_view { request_id } }", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	rows, ok := data["blood_order_view"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("unexpected data: %v", data)
	}
}

func TestRun_HasuraErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors":[{"message":"field 'bogus' not found in type: 'query_root'"}]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", "bloodbank")
	_, err := client.Run(context.Background(), Identity{}, "query { bogus }", nil)
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error = %v, want *QueryError", err)
	}
	if len(qe.Messages) != 1 {
		t.Errorf("messages = %v", qe.Messages)
	}
}

func TestRun_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", "bloodbank")
	if _, err := client.Run(context.Background(), Identity{}, "query { x }", nil); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"plain query", `query { blood_order_view(limit: 10) { request_id status } }`, false},
		{"anonymous selection", `{ blood_order_view { request_id } }`, false},
		{"mutation", `mutation { update_chat_messages(where: {}) { affected_rows } }`, false},
		{"string with brace", `query { v(where: {reason: {_eq: "closed }"}}) { id } }`, false},
		{"empty", "   ", true},
		{"prose", `Here is the query you asked for`, true},
		{"unbalanced", `query { blood_order_view { request_id }`, true},
		{"mismatched", `query { blood_order_view(limit: 10} ) { id } }`, true},
		{"no selection", `query`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.query)
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tc.query, err, tc.wantErr)
			}
		})
	}
}
