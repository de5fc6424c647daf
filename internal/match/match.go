// Package match implements the three interchangeable text-matching
// strategies: exact substring, tokenized, and fuzzy. Matching is
// case-insensitive and Unicode-aware at the code-point level.
//
// The strategies relax monotonically: every exact match is also a tokenized
// match, and every tokenized match is also a fuzzy match. Scores never
// overlap across tiers, so an exact hit always outranks a tokenized one and
// a tokenized hit always outranks a fuzzy one.
package match

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Mode selects the matching strategy.
type Mode int

const (
	Exact Mode = iota
	Tokens
	Fuzzy
)

func (m Mode) String() string {
	switch m {
	case Exact:
		return "exact"
	case Tokens:
		return "tokens"
	case Fuzzy:
		return "fuzzy"
	}
	return "unknown"
}

// ParseMode maps a strategy selector to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "exact":
		return Exact, nil
	case "tokens", "tokenized":
		return Tokens, nil
	case "fuzzy":
		return Fuzzy, nil
	}
	return 0, fmt.Errorf("unknown match mode %q (want exact, tokens or fuzzy)", s)
}

// Score bases per tier. The clustering bonus stays below 100, so tiers
// never overlap.
const (
	scoreExact  = 300.0
	scoreTokens = 200.0
	scoreFuzzy  = 100.0
	maxBonus    = 99.0
)

// Span is a matched range within record content, in rune offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Match is a successful strategy evaluation.
type Match struct {
	Span  Span
	Score float64
}

type qtoken struct {
	text string // lowercased
	tol  int    // fuzzy edit tolerance
}

// Matcher evaluates one compiled query term against record content.
// Read-only after construction, safe for concurrent use.
type Matcher struct {
	mode   Mode
	term   []rune // lowercased full term, for exact containment
	tokens []qtoken
}

// New compiles a query term for the given mode. The term must be non-empty,
// and for the token-based modes it must contain at least one word token.
func New(term string, mode Mode) (*Matcher, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("empty search term")
	}

	m := &Matcher{mode: mode, term: foldRunes(term)}

	for _, t := range tokenize(m.term) {
		tol := 2
		if t.end-t.start < 4 {
			// short tokens get tighter tolerance to avoid false positives
			tol = 1
		}
		m.tokens = append(m.tokens, qtoken{text: string(m.term[t.start:t.end]), tol: tol})
	}
	if mode != Exact && len(m.tokens) == 0 {
		return nil, fmt.Errorf("term %q has no searchable tokens", term)
	}

	return m, nil
}

// Mode returns the matcher's strategy.
func (m *Matcher) Mode() Mode { return m.mode }

// MaxScore is the highest score any content can achieve under this matcher.
// The aggregator uses it to decide when remaining files cannot improve a
// full result set.
func (m *Matcher) MaxScore() float64 {
	switch m.mode {
	case Exact:
		return scoreExact
	case Tokens:
		return scoreTokens + maxBonus
	default:
		return scoreFuzzy + maxBonus
	}
}

// Match evaluates the strategy against content. ok is false when the
// content does not match.
func (m *Matcher) Match(content string) (Match, bool) {
	if content == "" {
		return Match{}, false
	}
	low := foldRunes(content)

	if m.mode == Exact {
		idx := indexRunes(low, m.term)
		if idx < 0 {
			return Match{}, false
		}
		return Match{
			Span:  Span{Start: idx, End: idx + len(m.term)},
			Score: scoreExact,
		}, true
	}

	ctoks := tokenize(low)
	if len(ctoks) == 0 {
		return Match{}, false
	}

	// which query tokens each content token satisfies
	hits := make([][]int, len(ctoks))
	seen := make([]bool, len(m.tokens))
	for i, ct := range ctoks {
		text := string(low[ct.start:ct.end])
		for qi, qt := range m.tokens {
			if m.tokenMatches(qt, text) {
				hits[i] = append(hits[i], qi)
				seen[qi] = true
			}
		}
	}
	for _, s := range seen {
		if !s {
			return Match{}, false
		}
	}

	lo, hi := minimalCover(hits, len(m.tokens))

	base := scoreTokens
	if m.mode == Fuzzy {
		base = scoreFuzzy
	}
	width := hi - lo + 1
	bonus := maxBonus
	if width > len(m.tokens) {
		// tighter clustering of the matched tokens scores higher
		bonus = maxBonus * float64(len(m.tokens)) / float64(width)
	}

	return Match{
		Span:  Span{Start: ctoks[lo].start, End: ctoks[hi].end},
		Score: base + bonus,
	}, true
}

// tokenMatches reports whether a content token satisfies a query token.
// Tokenized mode requires substring containment; fuzzy mode additionally
// accepts a bounded Damerau-Levenshtein distance, so a transposition
// counts as a single edit.
func (m *Matcher) tokenMatches(qt qtoken, content string) bool {
	if strings.Contains(content, qt.text) {
		return true
	}
	if m.mode != Fuzzy {
		return false
	}
	return matchr.DamerauLevenshtein(qt.text, content) <= qt.tol
}

type tokenSpan struct {
	start, end int // rune offsets, half-open
}

// tokenize splits runes into maximal letter/digit runs.
func tokenize(rs []rune) []tokenSpan {
	var toks []tokenSpan
	start := -1
	for i, r := range rs {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			toks = append(toks, tokenSpan{start, i})
			start = -1
		}
	}
	if start >= 0 {
		toks = append(toks, tokenSpan{start, len(rs)})
	}
	return toks
}

// foldRunes lowercases per code point, preserving rune count so offsets in
// the folded text map one-to-one onto the original.
func foldRunes(s string) []rune {
	rs := []rune(s)
	for i, r := range rs {
		rs[i] = unicode.ToLower(r)
	}
	return rs
}

// indexRunes is a rune-wise substring search.
func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		j := 0
		for ; j < len(needle); j++ {
			if haystack[i+j] != needle[j] {
				break
			}
		}
		if j == len(needle) {
			return i
		}
	}
	return -1
}

// minimalCover finds the smallest window of content-token indices whose
// hits cover all q query tokens. Callers guarantee full coverage exists.
// Ties go to the earliest window.
func minimalCover(hits [][]int, q int) (lo, hi int) {
	need := make([]int, q)
	covered := 0
	bestLo, bestHi := 0, len(hits)-1
	found := false

	l := 0
	for r := 0; r < len(hits); r++ {
		for _, qi := range hits[r] {
			if need[qi] == 0 {
				covered++
			}
			need[qi]++
		}
		for covered == q {
			if !found || r-l < bestHi-bestLo {
				bestLo, bestHi = l, r
				found = true
			}
			for _, qi := range hits[l] {
				need[qi]--
				if need[qi] == 0 {
					covered--
				}
			}
			l++
		}
	}
	return bestLo, bestHi
}
