package keyword

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"serp-go/pkg/logger"
)

// Defaults bounding how many keywords one analysis may send to the oracle
const (
	DefaultMinLength  = 3
	DefaultMaxLength  = 50
	DefaultMaxNonWord = 2
	DefaultMaxWords   = 5
	DefaultMaxResults = 15
)

// Config controls keyword normalization bounds
type Config struct {
	MinLength  int `mapstructure:"min_length"`
	MaxLength  int `mapstructure:"max_length"`
	MaxNonWord int `mapstructure:"max_non_word"`
	MaxWords   int `mapstructure:"max_words"`
	MaxResults int `mapstructure:"max_results"`
}

// DefaultConfig returns the production normalization bounds
func DefaultConfig() Config {
	return Config{
		MinLength:  DefaultMinLength,
		MaxLength:  DefaultMaxLength,
		MaxNonWord: DefaultMaxNonWord,
		MaxWords:   DefaultMaxWords,
		MaxResults: DefaultMaxResults,
	}
}

// Normalizer cleans, deduplicates and bounds a keyword list before any
// external API spend. It has no failure mode: bad input degrades to an
// empty list.
type Normalizer struct {
	filters    []Filter
	maxResults int
	log        *logger.Logger
}

// NewNormalizer creates a normalizer with the given bounds
func NewNormalizer(config Config) *Normalizer {
	defaults := DefaultConfig()
	if config == (Config{}) {
		config = defaults
	}
	if config.MinLength <= 0 {
		config.MinLength = defaults.MinLength
	}
	if config.MaxLength <= 0 {
		config.MaxLength = defaults.MaxLength
	}
	if config.MaxNonWord < 0 {
		config.MaxNonWord = defaults.MaxNonWord
	}
	if config.MaxWords <= 0 {
		config.MaxWords = defaults.MaxWords
	}
	if config.MaxResults <= 0 {
		config.MaxResults = defaults.MaxResults
	}

	return &Normalizer{
		filters: []Filter{
			NewEmptyFilter(),
			NewLengthFilter(config.MinLength, config.MaxLength),
			NewPunctuationFilter(config.MaxNonWord),
			NewWordCountFilter(config.MaxWords),
			NewDuplicateFilter(),
		},
		maxResults: config.MaxResults,
		log:        logger.GetLogger().WithField("component", "keyword_normalizer"),
	}
}

// Normalize returns a deterministic, order-stable list of at most
// maxResults keywords, simplest first.
func (n *Normalizer) Normalize(raw []string) []string {
	keywords := make([]string, 0, len(raw))
	for _, kw := range raw {
		keywords = append(keywords, Canonical(kw))
	}

	for _, filter := range n.filters {
		before := len(keywords)
		keywords = filter.Apply(keywords)
		if dropped := before - len(keywords); dropped > 0 {
			n.log.WithFields(map[string]interface{}{
				"filter":  filter.Name(),
				"dropped": dropped,
			}).Debug("Keywords filtered")
		}
	}

	sort.SliceStable(keywords, func(i, j int) bool {
		return Complexity(keywords[i]) < Complexity(keywords[j])
	})

	if len(keywords) > n.maxResults {
		keywords = keywords[:n.maxResults]
	}

	return keywords
}

// Complexity ranks how API-friendly a keyword is: word count plus length/10
func Complexity(keyword string) float64 {
	return float64(len(strings.Fields(keyword))) + float64(utf8.RuneCountInString(keyword))/10
}

// Canonical trims, collapses whitespace, lowercases and strips diacritics.
// Applying it twice yields the same string.
func Canonical(keyword string) string {
	collapsed := strings.Join(strings.Fields(keyword), " ")
	if collapsed == "" {
		return ""
	}

	lowered := cases.Lower(language.Und).String(collapsed)

	// Transformers carry state, so a fresh chain is built per call
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		lowered,
	)
	if err != nil {
		return lowered
	}
	return stripped
}
