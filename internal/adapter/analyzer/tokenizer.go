package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokensPerWord approximates subword tokens per whitespace word for budget estimation.
const tokensPerWord = 1.3

// Tokenizer splits text into lower-cased terms with stopword removal.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		minLen:    2,
	}
}

// Tokenize splits text into terms.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if utf8.RuneCountInString(word) < t.minLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CountTokens returns an approximate model token count.
func (t *Tokenizer) CountTokens(text string) int {
	words := splitWords(text)
	if len(words) == 0 {
		return 0
	}
	return int(float64(len(words)) * tokensPerWord)
}

// Truncate keeps the head of text so that CountTokens of the result stays within
// maxTokens. Truncation always cuts at a word boundary and is deterministic.
// Non-positive maxTokens disables truncation.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || t.CountTokens(text) <= maxTokens {
		return text
	}

	maxWords := int(float64(maxTokens) / tokensPerWord)
	if maxWords < 1 {
		maxWords = 1
	}

	words := 0
	inWord := false
	for i, r := range text {
		if isWordRune(r) {
			if !inWord {
				if words == maxWords {
					return strings.TrimRightFunc(text[:i], unicode.IsSpace)
				}
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}
	return text
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// splitWords splits text into words using unicode letter/digit runs.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if isWordRune(r) {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
		"these", "those", "into", "using", "used", "here", "there",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
