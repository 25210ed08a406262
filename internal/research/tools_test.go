package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/factrail/internal/chat"
	"github.com/ppiankov/factrail/internal/model"
	"github.com/ppiankov/factrail/internal/provider"
)

// fakeProvider scripts search/extract outcomes
type fakeProvider struct {
	searchResp  *provider.SearchResponse
	searchErr   error
	extractResp *provider.ExtractResponse
	extractErr  error

	lastSearch  provider.SearchRequest
	lastExtract provider.ExtractRequest
}

func (f *fakeProvider) Search(ctx context.Context, req provider.SearchRequest) (*provider.SearchResponse, error) {
	f.lastSearch = req
	return f.searchResp, f.searchErr
}

func (f *fakeProvider) Extract(ctx context.Context, req provider.ExtractRequest) (*provider.ExtractResponse, error) {
	f.lastExtract = req
	return f.extractResp, f.extractErr
}

func toolCall(name, args string) chat.ToolCall {
	return chat.ToolCall{
		ID:       "call_1",
		Type:     "function",
		Function: chat.FunctionCall{Name: name, Arguments: args},
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := NewDispatcher(&fakeProvider{}, NewSourceRegistry(nil), 5, nil)
	if _, err := d.Dispatch(context.Background(), toolCall("launch_rockets", "{}")); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestDispatch_MalformedArguments(t *testing.T) {
	d := NewDispatcher(&fakeProvider{}, NewSourceRegistry(nil), 5, nil)
	_, err := d.Dispatch(context.Background(), toolCall(ToolSearchWeb, `{"objective":`))
	if err == nil {
		t.Fatal("expected error for malformed arguments")
	}
	// The malformed arguments string is carried in the error.
	if got := err.Error(); !strings.Contains(got, `{"objective":`) {
		t.Errorf("error should include the raw arguments: %s", got)
	}
}

func TestDispatch_SearchWeb(t *testing.T) {
	fp := &fakeProvider{
		searchResp: &provider.SearchResponse{
			SearchID: "s-1",
			Results: []provider.SearchResult{
				{URL: "https://a.com", Title: "A", PublishDate: "2026-01-01", Excerpts: []string{"snippet"}},
				{URL: "https://b.com", Title: "B"},
			},
		},
	}
	sources := NewSourceRegistry(nil)
	d := NewDispatcher(fp, sources, 5, nil)

	result, err := d.Dispatch(context.Background(), toolCall(ToolSearchWeb,
		`{"objective":"specs","search_queries":["q1"],"max_results":2}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	hits, ok := result.([]searchHit)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if len(hits) != 2 || hits[0].URL != "https://a.com" {
		t.Errorf("unexpected hits: %+v", hits)
	}
	if fp.lastSearch.MaxResults != 2 || len(fp.lastSearch.SearchQueries) != 1 {
		t.Errorf("unexpected provider request: %+v", fp.lastSearch)
	}

	got := sources.Sources()
	if len(got) != 2 || got[0].Type != model.SourceTypeSearch {
		t.Errorf("expected 2 search sources, got %+v", got)
	}
}

func TestDispatch_SearchWeb_MaxResultsCapped(t *testing.T) {
	fp := &fakeProvider{searchResp: &provider.SearchResponse{}}
	d := NewDispatcher(fp, NewSourceRegistry(nil), 3, nil)

	if _, err := d.Dispatch(context.Background(), toolCall(ToolSearchWeb,
		`{"objective":"x","max_results":50}`)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if fp.lastSearch.MaxResults != 3 {
		t.Errorf("max results should be capped at 3, got %d", fp.lastSearch.MaxResults)
	}
}

func TestDispatch_ExtractURL_RegistersSourcesEvenOnFailure(t *testing.T) {
	fp := &fakeProvider{extractErr: errors.New("provider down")}
	sources := NewSourceRegistry(nil)
	d := NewDispatcher(fp, sources, 5, nil)

	_, err := d.Dispatch(context.Background(), toolCall(ToolExtractURL,
		`{"urls":["https://a.com","https://b.com"],"objective":"specs"}`))
	if err == nil {
		t.Fatal("expected provider error to propagate")
	}

	got := sources.Sources()
	if len(got) != 2 {
		t.Fatalf("expected 2 extract sources despite failure, got %d", len(got))
	}
	for _, s := range got {
		if s.Type != model.SourceTypeExtract {
			t.Errorf("source type = %q, want extract", s.Type)
		}
	}
}

func TestDispatch_ExtractURL_ContentSelection(t *testing.T) {
	fp := &fakeProvider{
		extractResp: &provider.ExtractResponse{
			Results: []provider.ExtractResult{
				{URL: "https://a.com", Content: "plain", Markdown: "# md", Excerpts: []string{"e1", "e2"}},
			},
		},
	}
	d := NewDispatcher(fp, NewSourceRegistry(nil), 5, nil)

	result, err := d.Dispatch(context.Background(), toolCall(ToolExtractURL,
		`{"urls":["https://a.com"],"objective":"specs","excerpts":true}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	pages := result.([]pageContent)
	if pages[0].Content != "e1\n...\ne2" {
		t.Errorf("excerpt mode content = %q", pages[0].Content)
	}
	if fp.lastExtract.FullContent {
		t.Error("excerpt mode must not request full content")
	}

	// Full-content mode prefers markdown.
	result, err = d.Dispatch(context.Background(), toolCall(ToolExtractURL,
		`{"urls":["https://a.com"],"objective":"specs"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	pages = result.([]pageContent)
	if pages[0].Content != "# md" {
		t.Errorf("full mode content = %q", pages[0].Content)
	}
}

func TestDispatch_ExtractURL_MissingResultMarked(t *testing.T) {
	fp := &fakeProvider{
		extractResp: &provider.ExtractResponse{
			Results: []provider.ExtractResult{{URL: "https://a.com", Content: "ok"}},
		},
	}
	d := NewDispatcher(fp, NewSourceRegistry(nil), 5, nil)

	result, err := d.Dispatch(context.Background(), toolCall(ToolExtractURL,
		`{"urls":["https://a.com","https://b.com"],"objective":"specs"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	pages := result.([]pageContent)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[1].Error == "" {
		t.Error("missing extraction should be marked with an error")
	}
}
