package matcher

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"OpenMCP-Intent/internal/nlp/tokenizer"
)

func tokenize(t *testing.T, text string) []tokenizer.Token {
	t.Helper()
	tokens, err := tokenizer.NewSimple().Tokenize(text)
	if err != nil {
		t.Fatalf("tokenize %q: %v", text, err)
	}
	return tokens
}

var ignoreOrder = cmpopts.IgnoreUnexported(Match{})

func TestFindReportsOverlappingMatchesInOrder(t *testing.T) {
	patterns := []Pattern{
		{Name: "AMOUNT", Steps: []Predicate{Numeric(), TextIn("ETH", "USDC")}},
		{Name: "TOKEN", Steps: []Predicate{TextIn("ETH", "USDC")}},
	}
	got := Find(patterns, tokenize(t, "send 5 ETH and 2.5 USDC"))
	want := []Match{
		{Pattern: "AMOUNT", Start: 1, End: 3},
		{Pattern: "TOKEN", Start: 2, End: 3},
		{Pattern: "AMOUNT", Start: 4, End: 6},
		{Pattern: "TOKEN", Start: 5, End: 6},
	}
	if diff := cmp.Diff(want, got, ignoreOrder); diff != "" {
		t.Fatalf("unexpected matches (-want +got):\n%s", diff)
	}
}

func TestFindTiesKeepTableOrder(t *testing.T) {
	patterns := []Pattern{
		{Name: "DEST", Steps: []Predicate{LowerIn("on", "to"), TextIn("Base")}},
		{Name: "SOURCE", Steps: []Predicate{LowerIn("from", "on"), TextIn("Base")}},
	}
	got := Find(patterns, tokenize(t, "On Base"))
	if len(got) != 2 || got[0].Pattern != "DEST" || got[1].Pattern != "SOURCE" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestFindSkipsPatternsLongerThanInput(t *testing.T) {
	patterns := []Pattern{{Name: "PAIR", Steps: []Predicate{Numeric(), Numeric(), Numeric()}}}
	if got := Find(patterns, tokenize(t, "1 2")); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
	if got := Find(nil, tokenize(t, "1 2")); len(got) != 0 {
		t.Fatalf("expected no matches for empty table, got %+v", got)
	}
}

func TestNumericPredicate(t *testing.T) {
	pred := Numeric()
	cases := map[string]bool{
		"200":   true,
		"0.75":  true,
		"10.":   false,
		"-5":    false,
		"1e10":  false,
		"1,000": false,
		"ETH":   false,
	}
	for text, want := range cases {
		tok := tokenizer.Token{Text: text, Lower: text}
		if got := pred(tok); got != want {
			t.Fatalf("Numeric(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestRecipientStylePredicate(t *testing.T) {
	pred := All(IsAlpha(), Capitalized(), TextNotIn("ETH", "Base"))
	for text, want := range map[string]bool{"Sophie": true, "sophie": false, "ETH": false, "Base": false, "Tom2": false} {
		tokens := tokenize(t, text)
		if got := pred(tokens[0]); got != want {
			t.Fatalf("predicate(%q) = %v, want %v", text, got, want)
		}
	}
}
