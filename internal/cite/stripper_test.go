package cite

import (
	"strings"
	"testing"
)

func TestStripCitations_IdentityWithoutLinks(t *testing.T) {
	inputs := []string{
		"",
		"Plain text with no links at all.",
		"A [reference](ftp://files.example.com) with the wrong scheme.",
		"A [relative](/docs/page) link.",
		"Brackets [alone] and (parens) separately.",
	}
	for _, in := range inputs {
		got, citations := StripCitations(in, StripModeRemove)
		if got != in {
			t.Errorf("StripCitations(%q) rewrote text to %q", in, got)
		}
		if len(citations) != 0 {
			t.Errorf("StripCitations(%q) found %d citations", in, len(citations))
		}
	}
}

func TestStripCitations_RemoveMode(t *testing.T) {
	in := "The sky is blue [NASA](https://nasa.gov/sky)."
	got, citations := StripCitations(in, StripModeRemove)

	if got != "The sky is blue ." {
		t.Errorf("stripped = %q", got)
	}
	if len(citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(citations))
	}
	c := citations[0]
	if c.URL != "https://nasa.gov/sky" || c.Title != "NASA" {
		t.Errorf("citation = %+v", c)
	}
	if c.Text != "[NASA](https://nasa.gov/sky)" {
		t.Errorf("matched text = %q", c.Text)
	}
	if c.Position != strings.Index(in, "[NASA]") {
		t.Errorf("position = %d, want %d", c.Position, strings.Index(in, "[NASA]"))
	}
}

func TestStripCitations_KeepTextMode(t *testing.T) {
	in := "The sky is blue [NASA](https://nasa.gov/sky)."
	got, citations := StripCitations(in, StripModeKeepText)

	if got != "The sky is blue NASA." {
		t.Errorf("stripped = %q", got)
	}
	if len(citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(citations))
	}
}

func TestStripCitations_OffsetConsistencyAcrossLinks(t *testing.T) {
	in := "A [one](https://a.com/1) and B [two](https://b.com/2) and C [three](https://c.com/3)."
	got, citations := StripCitations(in, StripModeRemove)

	if len(citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(citations))
	}

	// Each citation's original-vs-stripped position difference equals
	// the total length removed before it.
	removedBefore := 0
	for i, c := range citations {
		if c.Position-c.StrippedPosition != removedBefore {
			t.Errorf("citation %d: position delta = %d, want %d",
				i, c.Position-c.StrippedPosition, removedBefore)
		}
		if in[c.Position:c.Position+len(c.Text)] != c.Text {
			t.Errorf("citation %d: position does not index its own match", i)
		}
		removedBefore += len(c.Text)
	}

	if got != "A  and B  and C ." {
		t.Errorf("stripped = %q", got)
	}
}

func TestStripCitations_MixedQualifyingLinks(t *testing.T) {
	in := "See [docs](/local) then [site](https://ok.example.com) now."
	got, citations := StripCitations(in, StripModeRemove)

	if len(citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(citations))
	}
	if citations[0].URL != "https://ok.example.com" {
		t.Errorf("citation url = %q", citations[0].URL)
	}
	if got != "See [docs](/local) then  now." {
		t.Errorf("stripped = %q", got)
	}
}

func TestStripCitations_Idempotent(t *testing.T) {
	in := "Fact one [a](https://a.com). Fact two [b](http://b.org)."
	once, _ := StripCitations(in, StripModeRemove)
	twice, citations := StripCitations(once, StripModeRemove)

	if twice != once {
		t.Errorf("second strip changed text: %q -> %q", once, twice)
	}
	if len(citations) != 0 {
		t.Errorf("second strip found %d citations", len(citations))
	}
}
