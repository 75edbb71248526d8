package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/textutil"
)

const (
	// clusterOverlap is the non-stopword token overlap above which two
	// claims are considered to discuss the same topic.
	clusterOverlap = 0.30

	// emitThreshold filters weak detections: a contradiction is only
	// emitted when its confidence strictly exceeds this.
	emitThreshold = 0.6

	// numericTolerance is the relative difference below which two
	// numbers for the same metric are not in disagreement.
	numericTolerance = 0.02
)

// Detector finds conflicting claim pairs. All tests are deterministic;
// claims with no detected conflict are retained downstream unchanged.
type Detector struct{}

// NewDetector creates a contradiction detector
func NewDetector() *Detector {
	return &Detector{}
}

// Detect clusters claims by lexical overlap and tests every pair within
// a cluster for negation, numeric, temporal, and semantic conflicts.
func (d *Detector) Detect(claims []model.Claim) []model.Contradiction {
	if len(claims) < 2 {
		return []model.Contradiction{}
	}

	clusters := clusterClaims(claims)

	var out []model.Contradiction
	for _, cluster := range clusters {
		for x := 0; x < len(cluster); x++ {
			for y := x + 1; y < len(cluster); y++ {
				i, j := cluster[x], cluster[y]
				if sameSource(claims[i], claims[j]) {
					continue
				}
				if c, ok := testPair(i, j, claims[i], claims[j]); ok && c.Confidence > emitThreshold {
					out = append(out, c)
				}
			}
		}
	}

	if out == nil {
		out = []model.Contradiction{}
	}
	return out
}

// clusterClaims unions claims whose non-stopword token overlap is at
// least the cluster threshold. Union-find keeps it transitive.
func clusterClaims(claims []model.Claim) [][]int {
	parent := make([]int, len(claims))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			if textutil.Overlap(claims[i].Text, claims[j].Text) >= clusterOverlap {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := range claims {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	var clusters [][]int
	for i := range claims {
		if find(i) == i && len(groups[i]) > 1 {
			clusters = append(clusters, groups[i])
		}
	}
	return clusters
}

func sameSource(a, b model.Claim) bool {
	for _, ra := range a.SourceRefs {
		for _, rb := range b.SourceRefs {
			if ra == rb {
				return true
			}
		}
	}
	return false
}

// testPair runs the conflict tests in order of specificity: numeric,
// temporal, negation, then semantic opposition.
func testPair(i, j int, a, b model.Claim) (model.Contradiction, bool) {
	overlap := textutil.Overlap(a.Text, b.Text)

	if detail, ok := numericConflict(a.Text, b.Text); ok {
		return model.Contradiction{
			ClaimA:       i,
			ClaimB:       j,
			ConflictType: model.ConflictNumeric,
			Confidence:   confidence(0.55, overlap),
			Detail:       detail,
		}, true
	}

	if detail, ok := temporalConflict(a.Text, b.Text); ok {
		return model.Contradiction{
			ClaimA:       i,
			ClaimB:       j,
			ConflictType: model.ConflictTemporal,
			Confidence:   confidence(0.50, overlap),
			Detail:       detail,
		}, true
	}

	if negationConflict(a.Text, b.Text) {
		return model.Contradiction{
			ClaimA:       i,
			ClaimB:       j,
			ConflictType: model.ConflictNegation,
			Confidence:   confidence(0.50, overlap),
			Detail:       "one claim negates the other's predicate",
		}, true
	}

	if wordA, wordB, ok := semanticOpposition(a.Text, b.Text); ok {
		return model.Contradiction{
			ClaimA:       i,
			ClaimB:       j,
			ConflictType: model.ConflictSemantic,
			Confidence:   confidence(0.40, overlap),
			Detail:       fmt.Sprintf("opposing terms: %s / %s", wordA, wordB),
		}, true
	}

	return model.Contradiction{}, false
}

// confidence scales a base by topical overlap and clamps to [0, 1].
// Low-overlap pairs fall under the emit threshold on their own.
func confidence(base, overlap float64) float64 {
	c := base + 0.45*overlap
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// numericConflict reports numbers for the same judged metric that
// differ beyond tolerance. The metric judgement is lexical: both
// numbers must share a neighbouring content token.
func numericConflict(a, b string) (string, bool) {
	numsA := numbersWithContext(a)
	numsB := numbersWithContext(b)

	for _, na := range numsA {
		for _, nb := range numsB {
			if !shareContext(na.context, nb.context) {
				continue
			}
			if na.value == 0 && nb.value == 0 {
				continue
			}
			larger := na.value
			if nb.value > larger {
				larger = nb.value
			}
			diff := na.value - nb.value
			if diff < 0 {
				diff = -diff
			}
			if larger > 0 && diff/larger > numericTolerance {
				return fmt.Sprintf("%g vs %g", na.value, nb.value), true
			}
		}
	}
	return "", false
}

type numberMention struct {
	value   float64
	context map[string]struct{}
}

// numbersWithContext extracts each number with its nearby content tokens
func numbersWithContext(text string) []numberMention {
	tokens := textutil.Tokenize(text)
	var mentions []numberMention
	for idx, tok := range tokens {
		if !numberRe.MatchString(tok) {
			continue
		}
		value, err := strconv.ParseFloat(numberRe.FindString(tok), 64)
		if err != nil {
			continue
		}
		// Years are handled by the temporal test
		if value >= 1900 && value <= 2100 && !strings.Contains(tok, ".") {
			continue
		}
		context := make(map[string]struct{})
		for off := -3; off <= 3; off++ {
			pos := idx + off
			if pos < 0 || pos >= len(tokens) || pos == idx {
				continue
			}
			if !textutil.IsStopWord(tokens[pos]) && !numberRe.MatchString(tokens[pos]) {
				context[tokens[pos]] = struct{}{}
			}
		}
		mentions = append(mentions, numberMention{value: value, context: context})
	}
	return mentions
}

func shareContext(a, b map[string]struct{}) bool {
	for tok := range a {
		if _, ok := b[tok]; ok {
			return true
		}
	}
	return false
}

var yearRe = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// temporalConflict reports different years assigned to the same judged
// event (the pair is already topically clustered)
func temporalConflict(a, b string) (string, bool) {
	yearsA := yearRe.FindAllString(a, -1)
	yearsB := yearRe.FindAllString(b, -1)
	if len(yearsA) == 0 || len(yearsB) == 0 {
		return "", false
	}

	// Any shared year means agreement, not conflict
	setA := make(map[string]bool)
	for _, y := range yearsA {
		setA[y] = true
	}
	for _, y := range yearsB {
		if setA[y] {
			return "", false
		}
	}
	return fmt.Sprintf("%s vs %s", yearsA[0], yearsB[0]), true
}

var negationMarkers = []string{"not", "no", "never", "cannot", "n't", "without"}

// negationConflict reports one claim carrying a negation marker over
// the shared predicate while the other does not
func negationConflict(a, b string) bool {
	return hasNegation(a) != hasNegation(b)
}

func hasNegation(text string) bool {
	lower := " " + strings.ToLower(text) + " "
	for _, marker := range negationMarkers {
		if marker == "n't" {
			if strings.Contains(lower, "n't") {
				return true
			}
			continue
		}
		if strings.Contains(lower, " "+marker+" ") {
			return true
		}
	}
	return false
}

// opposingPairs are directional antonyms indicating opposite findings
var opposingPairs = [][2]string{
	{"increase", "decrease"}, {"increases", "decreases"},
	{"improve", "worsen"}, {"improves", "worsens"},
	{"reduce", "increase"}, {"reduces", "increases"},
	{"better", "worse"}, {"higher", "lower"},
	{"more", "less"}, {"faster", "slower"},
	{"effective", "ineffective"},
	{"mandatory", "optional"}, {"required", "voluntary"},
}

func semanticOpposition(a, b string) (string, string, bool) {
	lowerA := strings.ToLower(a)
	lowerB := strings.ToLower(b)
	for _, pair := range opposingPairs {
		if (containsWord(lowerA, pair[0]) && containsWord(lowerB, pair[1])) ||
			(containsWord(lowerA, pair[1]) && containsWord(lowerB, pair[0])) {
			return pair[0], pair[1], true
		}
	}
	return "", "", false
}

func containsWord(text, word string) bool {
	for _, tok := range textutil.Tokenize(text) {
		if tok == word {
			return true
		}
	}
	return false
}
