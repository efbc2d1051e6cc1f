package units

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// MatchStrategy names one way of deciding whether a competitor appears in
// an answer. A competitor is mentioned when any configured strategy fires.
type MatchStrategy string

// Supported match strategies.
const (
	// StrategyExact is a case-insensitive substring match on the raw name.
	StrategyExact MatchStrategy = "exact"

	// StrategyNormalized is a substring match on the name with its company
	// suffix stripped, so "Acme Corp" matches an answer saying "Acme".
	StrategyNormalized MatchStrategy = "normalized"

	// StrategyWordBoundary matches the raw name as a whole word.
	StrategyWordBoundary MatchStrategy = "word_boundary"

	// StrategyFuzzy compares the normalized name against word windows of
	// the answer by Levenshtein similarity. Off by default.
	StrategyFuzzy MatchStrategy = "fuzzy"
)

// DefaultMatchStrategies returns the strategies applied when none are
// configured.
func DefaultMatchStrategies() []MatchStrategy {
	return []MatchStrategy{StrategyExact, StrategyNormalized, StrategyWordBoundary}
}

var (
	// companySuffix matches one trailing company-type suffix. A separator
	// is required so that names like "Disco" keep their ending.
	companySuffix = regexp.MustCompile(`(?i)[\s,]+(?:inc|llc|ltd|ab|corp|corporation|company|co)\.?$`)

	// listItemLine matches a line that starts a list item.
	listItemLine = regexp.MustCompile(`^\s*(?:[-*]\s+|•\s*|\d+\.(?:\s+|$))(.*)$`)

	// inlineNumber matches a short "N. " list marker anywhere in a line and
	// captures N.
	inlineNumber = regexp.MustCompile(`(?:^|\s)(\d{1,3})\.\s+`)
)

// foldString case-folds s. A cases.Caser is not safe for concurrent use,
// and detection runs on many goroutines, so each call gets its own.
func foldString(s string) string {
	return cases.Fold().String(s)
}

// NormalizeName case-folds a company name and strips one trailing company
// suffix such as "Inc", "LLC" or "Corp.".
func NormalizeName(name string) string {
	s := strings.TrimSpace(foldString(name))
	s = companySuffix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ExtractListItems returns the text of every list item in answer, in order.
// Lines starting with "N.", "-", "*" or "•" each contribute one item. A line
// carrying several "N. " markers counting up from 1, as in "1. Acme 2.
// Widget", is split at each marker so that lists flattened onto one line
// still rank correctly.
func ExtractListItems(answer string) []string {
	var items []string
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimRight(line, "\r")

		if inline := splitInlineNumbered(line); inline != nil {
			items = append(items, inline...)
			continue
		}

		if m := listItemLine.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		}
	}
	return items
}

// splitInlineNumbered splits a line on its "N. " markers. It returns nil
// unless the line carries at least two markers numbered 1, 2, 3 and so on
// in order, which keeps prose such as "founded in 1999. It grew in 2015."
// whole. Text before the first marker is a lead-in, not an item.
func splitInlineNumbered(line string) []string {
	markers := inlineNumber.FindAllStringSubmatchIndex(line, -1)
	if len(markers) < 2 {
		return nil
	}
	for i, m := range markers {
		if line[m[2]:m[3]] != strconv.Itoa(i+1) {
			return nil
		}
	}

	items := make([]string, 0, len(markers))
	for i, m := range markers {
		end := len(line)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		items = append(items, strings.TrimSpace(line[m[1]:end]))
	}
	return items
}

// answerDoc is an answer prepared once for matching against many names.
type answerDoc struct {
	raw    string
	folded string
	items  []string // case-folded list items
	words  []string // case-folded word tokens, built on demand
}

func newAnswerDoc(answer string) *answerDoc {
	items := ExtractListItems(answer)
	for i, item := range items {
		items[i] = foldString(item)
	}
	return &answerDoc{
		raw:    answer,
		folded: foldString(answer),
		items:  items,
	}
}

func (d *answerDoc) tokens() []string {
	if d.words == nil {
		d.words = strings.FieldsFunc(d.folded, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
	}
	return d.words
}

// nameMatcher holds the precomputed forms of one competitor name.
type nameMatcher struct {
	name       string
	folded     string
	normalized string
	boundary   *regexp.Regexp
}

func newNameMatcher(name string) nameMatcher {
	m := nameMatcher{
		name:       name,
		folded:     strings.TrimSpace(foldString(name)),
		normalized: NormalizeName(name),
	}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		// Compile only fails on invalid UTF-8; that name then relies on
		// the substring strategies.
		if re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(trimmed) + `\b`); err == nil {
			m.boundary = re
		}
	}
	return m
}

// matches reports whether any of strategies finds the name in doc.
// Blank names never match.
func (m nameMatcher) matches(doc *answerDoc, strategies []MatchStrategy, fuzzyThreshold float64) bool {
	if m.folded == "" {
		return false
	}
	for _, s := range strategies {
		switch s {
		case StrategyExact:
			if strings.Contains(doc.folded, m.folded) {
				return true
			}
		case StrategyNormalized:
			if m.normalized != "" && strings.Contains(doc.folded, m.normalized) {
				return true
			}
		case StrategyWordBoundary:
			if m.boundary != nil && m.boundary.MatchString(doc.raw) {
				return true
			}
		case StrategyFuzzy:
			if m.fuzzyMatch(doc, fuzzyThreshold) {
				return true
			}
		}
	}
	return false
}

// rank returns the 1-based index of the first list item naming the
// competitor by its raw or normalized form, or nil.
func (m nameMatcher) rank(doc *answerDoc) *int {
	for i, item := range doc.items {
		if strings.Contains(item, m.folded) ||
			(m.normalized != "" && strings.Contains(item, m.normalized)) {
			rank := i + 1
			return &rank
		}
	}
	return nil
}

// fuzzyMatch slides a window as wide as the normalized name over the
// answer's words and reports whether any window is similar enough.
func (m nameMatcher) fuzzyMatch(doc *answerDoc, threshold float64) bool {
	target := strings.Fields(m.normalized)
	if len(target) == 0 {
		return false
	}
	want := strings.Join(target, " ")
	words := doc.tokens()
	for i := 0; i+len(target) <= len(words); i++ {
		window := strings.Join(words[i:i+len(target)], " ")
		if similarity(want, window) >= threshold {
			return true
		}
	}
	return false
}

// similarity returns 1 - distance/maxLen over runes, in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	// The levenshtein library correctly handles multi-byte UTF-8 characters.
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}
