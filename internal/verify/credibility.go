package verify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/noema/internal/model"
)

// Classifier assigns credibility tiers to evidence sources from their
// type and identity. Defaults cover the common cases; domain and path
// overrides come from configuration.
type Classifier struct {
	domainTiers  map[string]model.CredibilityTier
	pathPatterns []compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.CredibilityTier
}

// academicDomains are hosts (or suffixes) treated as peer-reviewed
var academicDomains = []string{
	"arxiv.org", "doi.org", "pubmed.ncbi.nlm.nih.gov", "nature.com",
	"acm.org", "ieee.org", "sciencedirect.com", "springer.com",
}

// officialDomains are hosts (or suffixes) treated as official docs/specs
var officialDomains = []string{
	"rfc-editor.org", "w3.org", "ietf.org", "iso.org", "nist.gov",
	"docs.python.org", "go.dev", "kubernetes.io", "postgresql.org",
}

// establishedDomains are reputable general publications
var establishedDomains = []string{
	"wikipedia.org", "reuters.com", "apnews.com", "bbc.com",
	"nytimes.com", "theguardian.com", "economist.com", "acm.queue.org",
}

// blogDomains are general blog/tutorial platforms
var blogDomains = []string{
	"medium.com", "dev.to", "substack.com", "blogspot.com",
	"wordpress.com", "github.io", "hashnode.dev",
}

// NewClassifier creates a classifier with configured overrides
func NewClassifier(cfg model.VerifyConfig) *Classifier {
	c := &Classifier{
		domainTiers: make(map[string]model.CredibilityTier),
	}

	for domain, tier := range cfg.DomainTiers {
		if tier >= 1 && tier <= 5 {
			c.domainTiers[strings.ToLower(domain)] = model.CredibilityTier(tier)
		}
	}

	for pattern, tier := range cfg.PathPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if tier >= 1 && tier <= 5 {
			c.pathPatterns = append(c.pathPatterns, compiledPattern{
				pattern: re,
				tier:    model.CredibilityTier(tier),
			})
		}
	}

	return c
}

// Classify returns the credibility tier for an evidence chunk
func (c *Classifier) Classify(chunk model.EvidenceChunk) model.CredibilityTier {
	if chunk.SourceType == model.SourceUploaded {
		return model.TierUserUploaded
	}

	host := hostOf(chunk.SourceID)

	// Configured overrides first
	if host != "" {
		if tier, ok := c.lookupDomain(host); ok {
			return tier
		}
	}
	for _, cp := range c.pathPatterns {
		if cp.pattern.MatchString(chunk.SourceID) {
			return cp.tier
		}
	}

	if host != "" {
		if matchesAny(host, academicDomains) || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
			return model.TierAcademic
		}
		if matchesAny(host, officialDomains) || strings.HasSuffix(host, ".gov") {
			return model.TierOfficial
		}
		if matchesAny(host, establishedDomains) {
			return model.TierEstablished
		}
		if matchesAny(host, blogDomains) || strings.HasPrefix(host, "blog.") {
			return model.TierBlog
		}
	}

	// Non-URL identifiers come from the index: curated corpus content
	// defaults to an established publication; bare web URLs do not.
	if chunk.SourceType == model.SourceIndexed {
		return model.TierEstablished
	}
	return model.TierGeneralWeb
}

func (c *Classifier) lookupDomain(host string) (model.CredibilityTier, bool) {
	if tier, ok := c.domainTiers[host]; ok {
		return tier, true
	}
	for domain, tier := range c.domainTiers {
		if strings.HasSuffix(host, "."+domain) {
			return tier, true
		}
	}
	return model.TierUnknown, false
}

func matchesAny(host string, domains []string) bool {
	for _, domain := range domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// hostOf extracts the lowercased host from a URL-shaped source ID,
// or empty for plain labels and filenames
func hostOf(sourceID string) string {
	if !strings.Contains(sourceID, "://") {
		return ""
	}
	parsed, err := url.Parse(sourceID)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return strings.TrimPrefix(host, "www.")
}
