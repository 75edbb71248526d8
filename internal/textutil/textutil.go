package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Tokenize lowercases text and splits it into word tokens. Interior
// periods survive so decimal numbers stay whole.
func Tokenize(text string) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.Trim(tok, ".")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// WordSet returns the set of distinct tokens in text
func WordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// ContentTokens returns the distinct non-stopword tokens of text
func ContentTokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		if _, stop := stopWords[tok]; !stop {
			set[tok] = struct{}{}
		}
	}
	return set
}

// Jaccard computes word-set Jaccard similarity between two texts
func Jaccard(a, b string) float64 {
	setA := WordSet(a)
	setB := WordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// Overlap computes |A∩B| / min(|A|,|B|) over non-stopword tokens.
// Used for clustering claims about the same topic.
func Overlap(a, b string) float64 {
	setA := ContentTokens(a)
	setB := ContentTokens(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(inter) / float64(smaller)
}

// SplitSentences splits text into sentences with a simple terminator
// heuristic, keeping only sentences of plausible claim length.
func SplitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Look ahead to avoid splitting on abbreviations
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				appendSentence(&sentences, current.String())
				current.Reset()
			}
		}
	}

	if current.Len() > 0 {
		appendSentence(&sentences, current.String())
	}

	return sentences
}

func appendSentence(sentences *[]string, raw string) {
	sentence := strings.TrimSpace(raw)
	if len(sentence) >= 20 && len(sentence) <= 500 {
		*sentences = append(*sentences, sentence)
	}
}

// SplitParagraphs splits text at blank-line boundaries, dropping empty
// segments. Used to break oversized chunks before dedup and fusion.
func SplitParagraphs(text string) []string {
	var paragraphs []string
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			paragraphs = append(paragraphs, part)
		}
	}
	if len(paragraphs) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return paragraphs
}

// StripHTML extracts visible text from HTML, skipping scripts and styles
func StripHTML(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return strings.TrimSpace(buf.String())
}

// stopWords is the shared stopword list for overlap clustering and
// upload keyword scoring.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "from", "is", "are", "was", "were", "be", "been",
		"being", "have", "has", "had", "do", "does", "did", "will", "would",
		"could", "should", "may", "might", "can", "this", "that", "these",
		"those", "it", "its", "they", "them", "their", "we", "our", "you",
		"your", "he", "she", "his", "her", "as", "if", "not", "no", "so",
		"than", "too", "very", "just", "about", "also", "more", "some",
		"such", "only", "other", "into", "over", "after", "then", "what",
		"when", "where", "how", "why", "which", "who",
	} {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether tok is a stopword
func IsStopWord(tok string) bool {
	_, ok := stopWords[strings.ToLower(tok)]
	return ok
}
