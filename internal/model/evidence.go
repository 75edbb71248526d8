package model

// SourceType classifies where an evidence chunk came from
type SourceType string

const (
	SourceIndexed  SourceType = "indexed-document" // Vector/indexed search service
	SourceLiveWeb  SourceType = "live-web"         // Live web search
	SourceUploaded SourceType = "user-uploaded"    // User-supplied local document
)

// EvidenceChunk is a single retrieved passage of evidence.
// Chunks are immutable once created; a fusion pass builds new chunks
// rather than mutating existing ones so ranking runs stay reproducible.
type EvidenceChunk struct {
	Text       string     `json:"text"`
	SourceID   string     `json:"source_id"` // Filename, URL, or source label
	SourceType SourceType `json:"source_type"`
	RawScore   float64    `json:"raw_score"`             // Source-local relevance, 0-1
	FusedScore float64    `json:"fused_score,omitempty"` // Assigned only by the fusion ranker
}

// CredibilityTier is a coarse trust classification of an evidence source
type CredibilityTier int

const (
	TierUnknown      CredibilityTier = 0
	TierAcademic     CredibilityTier = 1 // Peer-reviewed / academic
	TierOfficial     CredibilityTier = 2 // Official docs / specs
	TierEstablished  CredibilityTier = 3 // Established publications
	TierBlog         CredibilityTier = 4 // General blogs / tutorials
	TierGeneralWeb   CredibilityTier = 5 // Unverified general web
	TierUserUploaded CredibilityTier = 6 // User-uploaded document
)

func (t CredibilityTier) String() string {
	switch t {
	case TierAcademic:
		return "academic"
	case TierOfficial:
		return "official"
	case TierEstablished:
		return "established"
	case TierBlog:
		return "blog"
	case TierGeneralWeb:
		return "general-web"
	case TierUserUploaded:
		return "user-uploaded"
	default:
		return "unknown"
	}
}

// BaseScore returns the base credibility for the tier. User-uploaded
// documents sit between blogs and the general web: local, but unvetted.
func (t CredibilityTier) BaseScore() float64 {
	switch t {
	case TierAcademic:
		return 0.95
	case TierOfficial:
		return 0.90
	case TierEstablished:
		return 0.80
	case TierBlog:
		return 0.65
	case TierGeneralWeb:
		return 0.45
	case TierUserUploaded:
		return 0.50
	default:
		return 0.45
	}
}
