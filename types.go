package resonance

import "time"

// Fixed scoring constants. Not configuration: changing any of these
// changes what a score means.
const (
	// ReputationThreshold gates pool eligibility. Receivers at or below it
	// are never ranked, never offered to, never mutated.
	ReputationThreshold = 0.5

	// AdaptationRate is the per-feedback multiplier applied to every element
	// of a creator's expectation profile.
	AdaptationRate = 0.99

	// AffirmationTag is appended to an artifact's themes after each
	// successful offer when the creator's feedback loop is enabled.
	AffirmationTag = "affirmation"

	// socialBondCap is the interaction count at which a bond saturates.
	socialBondCap = 5

	// sharedMeaningCap bounds the thematic-overlap count.
	sharedMeaningCap = 10

	// cosineEpsilon stabilizes the cosine denominator for zero-norm vectors.
	cosineEpsilon = 1e-9
)

// Artifact is a piece of content produced by a creator.
// Themes grow monotonically through feedback; they are never pruned here.
type Artifact struct {
	ID           string
	QualityScore float64 // carried on the entity, not read by scoring
	Vector       []float64
	Themes       []string
	CreatedAt    time.Time
}

// Creator produces artifacts and accumulates an expectation profile that
// feedback decays over time.
type Creator struct {
	ID                  string
	ExpectationProfile  []float64
	ArtifactHistory     []*Artifact
	FeedbackLoopEnabled bool
}

// Receiver is a candidate destination for an offered artifact. Receivers are
// read-only within the engine.
type Receiver struct {
	ID                 string
	ValueVector        []float64
	SentimentProfile   []string
	ReputationScore    float64
	InteractionHistory []string // creator IDs, duplicates meaningful
}

// RankedReceiver pairs a receiver with its combined score for inspection.
type RankedReceiver struct {
	Receiver *Receiver
	Score    float64
}

// Offer records one artifact-to-receiver match made during orchestration.
type Offer struct {
	ArtifactID string
	ReceiverID string
	Score      float64
}

// OfferEvent is emitted to the sink for every match.
type OfferEvent struct {
	EventID    string
	ArtifactID string
	ReceiverID string
	Score      float64
	OccurredAt time.Time
}

// EvolutionEvent is emitted to the sink for every feedback application.
type EvolutionEvent struct {
	EventID    string
	ArtifactID string
	AppliedTag string
	OccurredAt time.Time
}

// Config holds Engine initialization parameters.
type Config struct {
	DBPath               string        // Path to SQLite file (default: ./data/resonance.db)
	VectorDimension      int           // Registry-enforced vector length (default 8)
	MaxJournalRows       int           // Offer journal cap (default 10000)
	JournalSweepInterval time.Duration // Default 12h
	Sink                 EventSink     // Extra sink alongside the journal (default: LogSink)
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "./data/resonance.db"
	}
	if c.VectorDimension == 0 {
		c.VectorDimension = 8
	}
	if c.MaxJournalRows == 0 {
		c.MaxJournalRows = 10000
	}
	if c.JournalSweepInterval == 0 {
		c.JournalSweepInterval = 12 * time.Hour
	}
	if c.Sink == nil {
		c.Sink = &LogSink{}
	}
}
