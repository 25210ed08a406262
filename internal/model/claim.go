package model

// ExtractedCitation is an inline markdown-link citation removed from a
// finished answer. Position is the byte offset of the link in the
// original, un-edited answer text.
type ExtractedCitation struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Text     string `json:"text"`     // Full matched link text, [Title](URL)
	Position int    `json:"position"` // Offset in the original answer
	// StrippedPosition is the offset of the replacement point in the
	// rewritten text, after the cumulative length delta of every
	// earlier replacement
	StrippedPosition int `json:"stripped_position"`
}

// Claim is a contiguous span of stripped answer text asserting a
// verifiable fact. Invariant: Text equals stripped[Start:End].
type Claim struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"` // Half-open range end
}
