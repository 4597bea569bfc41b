package civicdesksdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsAuthAndDecodes(t *testing.T) {
	var gotKey, gotPath, gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Grievance{ID: "g-1", Status: "Pending", ReopenedCount: 1, CanReopen: true, Version: 3})
	}))
	defer srv.Close()

	c := New(srv.URL + "/v0/")
	c.APIKey = "secret"
	v := int64(2)
	g, err := c.ReopenGrievance(context.Background(), "g-1", &v)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if gotKey != "secret" || gotMethod != http.MethodPut || gotPath != "/v0/grievances/g-1/reopen" {
		t.Fatalf("unexpected request %s %s key=%q", gotMethod, gotPath, gotKey)
	}
	if gotBody["expected_version"] != float64(2) {
		t.Fatalf("expected_version not sent: %v", gotBody)
	}
	if g.ReopenedCount != 1 || g.Version != 3 || g.RaisedBy != nil {
		t.Fatalf("unexpected grievance %+v", g)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"conflict","message":"version mismatch","details":{}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	status := "Approved"
	_, err := c.UpdateFile(context.Background(), "f-1", FileUpdate{Status: &status})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "conflict" || apiErr.Message != "version mismatch" {
		t.Fatalf("unexpected error %#v", err)
	}
}

func TestEventsPageQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":7,"type":"grievance.created","entity_kind":"grievance","actor_id":"u1","payload_json":"{}"}],"next_cursor":"7"}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).EventsPage(context.Background(), 1, "9")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if gotQuery != "cursor=9&limit=1" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(page.Items) != 1 || page.Items[0].ID != 7 || page.NextCursor != "7" {
		t.Fatalf("unexpected page %+v", page)
	}
}
