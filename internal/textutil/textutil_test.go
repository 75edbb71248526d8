package textutil

import (
	"math"
	"testing"
)

func TestTokenize_DecimalsAndPunctuation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain words", "The Quick Brown Fox", []string{"the", "quick", "brown", "fox"}},
		{"decimal kept whole", "latency dropped to 3.5 ms.", []string{"latency", "dropped", "to", "3.5", "ms"}},
		{"trailing punctuation stripped", "done. really!", []string{"done", "really"}},
		{"empty", "  \t\n ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "go is fast", "go is fast", 1.0},
		{"disjoint", "alpha beta", "gamma delta", 0.0},
		{"both empty", "", "", 1.0},
		{"one empty", "alpha", "", 0.0},
		{"half overlap", "a b c d", "c d e f", 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jaccard(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestJaccard_Symmetric(t *testing.T) {
	a := "reciprocal rank fusion merges ranked lists"
	b := "fusion merges lists by reciprocal rank"
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Error("Expected Jaccard to be symmetric")
	}
}

func TestOverlap_IgnoresStopwords(t *testing.T) {
	// Shared words are all stopwords, so no content overlap
	got := Overlap("the cat is on a mat", "the dog is on a log")
	// content tokens: {cat, mat} vs {dog, log}
	if got != 0 {
		t.Errorf("Expected 0 overlap over content tokens, got %v", got)
	}

	got = Overlap("server throughput doubled", "throughput of the server improved")
	// {server, throughput, doubled} vs {server, throughput, improved}: 2/3
	if math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("Expected 2/3 overlap, got %v", got)
	}
}

func TestSplitSentences_LengthBounds(t *testing.T) {
	text := "Short. This sentence is comfortably inside the claim length window for extraction. Ok!"
	sentences := SplitSentences(text)

	if len(sentences) != 1 {
		t.Fatalf("Expected 1 sentence within bounds, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "This sentence is comfortably inside the claim length window for extraction." {
		t.Errorf("Unexpected sentence: %q", sentences[0])
	}
}

func TestSplitParagraphs(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph\n\n\n\nthird"
	paragraphs := SplitParagraphs(text)
	if len(paragraphs) != 3 {
		t.Fatalf("Expected 3 paragraphs, got %d: %v", len(paragraphs), paragraphs)
	}
	if paragraphs[1] != "second paragraph" {
		t.Errorf("Unexpected paragraph: %q", paragraphs[1])
	}
}

func TestStripHTML(t *testing.T) {
	html := `<html><head><style>body{color:red}</style></head>
	<body><p>Visible text.</p><script>alert("hidden")</script></body></html>`

	got := StripHTML(html)
	if got != "Visible text." {
		t.Errorf("StripHTML = %q, want %q", got, "Visible text.")
	}
}

func TestIsStopWord(t *testing.T) {
	if !IsStopWord("The") {
		t.Error("Expected 'The' to be a stopword")
	}
	if IsStopWord("latency") {
		t.Error("Expected 'latency' not to be a stopword")
	}
}
