package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestSearch_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "pk-test" {
			t.Errorf("api key header = %q", r.Header.Get("x-api-key"))
		}
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Objective != "find things" || req.MaxResults != 3 {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(SearchResponse{
			SearchID: "s-1",
			Results: []SearchResult{
				{URL: "https://a.com", Title: "A", Excerpts: []string{"one"}},
				{URL: "https://b.com", Title: "B"},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient("pk-test", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Search(context.Background(), SearchRequest{
		Objective:  "find things",
		MaxResults: 3,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].Title != "A" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

func TestExtract_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req ExtractRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.URLs) != 1 || !req.FullContent {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(ExtractResponse{
			Results: []ExtractResult{{URL: req.URLs[0], Content: "page text", Markdown: "# page"}},
		})
	}))
	defer server.Close()

	client, _ := NewClient("pk-test", WithBaseURL(server.URL))
	resp, err := client.Extract(context.Background(), ExtractRequest{
		URLs:        []string{"https://a.com"},
		FullContent: true,
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if resp.Results[0].Markdown != "# page" {
		t.Errorf("unexpected result: %+v", resp.Results[0])
	}
}

func TestPost_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	}))
	defer server.Close()

	client, _ := NewClient("pk-test", WithBaseURL(server.URL))
	if _, err := client.Search(context.Background(), SearchRequest{Objective: "x"}); err == nil {
		t.Fatal("expected error for 502")
	}
}
