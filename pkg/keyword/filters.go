package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Filter drops keywords that should not reach the search oracle
type Filter interface {
	Apply(keywords []string) []string
	Name() string
}

// EmptyFilter removes blank keywords
type EmptyFilter struct{}

func NewEmptyFilter() *EmptyFilter {
	return &EmptyFilter{}
}

func (f *EmptyFilter) Apply(keywords []string) []string {
	filtered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.TrimSpace(kw) != "" {
			filtered = append(filtered, kw)
		}
	}
	return filtered
}

func (f *EmptyFilter) Name() string {
	return "empty"
}

// LengthFilter filters keywords by character count
type LengthFilter struct {
	minLength int
	maxLength int
}

func NewLengthFilter(minLength, maxLength int) *LengthFilter {
	return &LengthFilter{
		minLength: minLength,
		maxLength: maxLength,
	}
}

func (f *LengthFilter) Apply(keywords []string) []string {
	filtered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		n := utf8.RuneCountInString(kw)
		if n >= f.minLength && n <= f.maxLength {
			filtered = append(filtered, kw)
		}
	}
	return filtered
}

func (f *LengthFilter) Name() string {
	return "length"
}

// PunctuationFilter rejects keywords with too many non-word characters.
// Letters, digits, underscores and spaces count as word characters.
type PunctuationFilter struct {
	maxNonWord int
}

func NewPunctuationFilter(maxNonWord int) *PunctuationFilter {
	return &PunctuationFilter{maxNonWord: maxNonWord}
}

func (f *PunctuationFilter) Apply(keywords []string) []string {
	filtered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if countNonWord(kw) <= f.maxNonWord {
			filtered = append(filtered, kw)
		}
	}
	return filtered
}

func (f *PunctuationFilter) Name() string {
	return "punctuation"
}

func countNonWord(s string) int {
	count := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			continue
		}
		count++
	}
	return count
}

// WordCountFilter rejects phrases with more than maxWords words
type WordCountFilter struct {
	maxWords int
}

func NewWordCountFilter(maxWords int) *WordCountFilter {
	return &WordCountFilter{maxWords: maxWords}
}

func (f *WordCountFilter) Apply(keywords []string) []string {
	filtered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if len(strings.Fields(kw)) <= f.maxWords {
			filtered = append(filtered, kw)
		}
	}
	return filtered
}

func (f *WordCountFilter) Name() string {
	return "word_count"
}

// DuplicateFilter removes duplicate keywords, keeping the first occurrence
type DuplicateFilter struct{}

func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{}
}

func (f *DuplicateFilter) Apply(keywords []string) []string {
	seen := make(map[string]bool)
	filtered := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		if !seen[kw] {
			seen[kw] = true
			filtered = append(filtered, kw)
		}
	}

	return filtered
}

func (f *DuplicateFilter) Name() string {
	return "duplicate"
}
