package resonance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a registry lookup misses.
	ErrNotFound = errors.New("resonance: not found")

	// ErrDimensionMismatch is returned when a registered vector does not
	// match the engine's configured dimension.
	ErrDimensionMismatch = errors.New("resonance: vector dimension mismatch")

	// ErrNoStore is returned by registry operations on a store-less engine.
	ErrNoStore = errors.New("resonance: engine has no store")
)

// Engine is the artifact-matching engine. The scoring pipeline itself is
// pure (see scoring.go, ranking.go); the Engine adds event emission, the
// optional SQLite registry, and the journal sweep worker.
type Engine struct {
	store       *Store
	sink        EventSink
	config      Config
	cancelSweep context.CancelFunc
}

// New creates an in-memory engine with no registry. All entities are owned
// by the caller; events go to the given sink (LogSink when nil).
func New(sink EventSink) *Engine {
	if sink == nil {
		sink = &LogSink{}
	}
	return &Engine{sink: sink}
}

// Init creates a store-backed Engine: opens the registry database, wires the
// journal sink alongside the configured sink, and starts the journal sweep
// worker.
func Init(cfg Config) (*Engine, error) {
	cfg.ApplyDefaults()

	store, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:  store,
		sink:   MultiSink{cfg.Sink, &JournalSink{store: store}},
		config: cfg,
	}
	e.startSweepWorker(cfg.JournalSweepInterval)

	log.Printf("[resonance] Initialized (db=%s, dim=%d)", cfg.DBPath, cfg.VectorDimension)
	return e, nil
}

// OfferArtifact drives one artifact through ranking and feedback. Ranking is
// computed once up front; the ranked list is then walked strictly in order.
// Every match emits an offer event, and when the creator's feedback loop is
// enabled the feedback step runs after each individual offer, so the
// artifact's themes and the creator's expectation profile drift as the walk
// advances. Later receivers see state already mutated by earlier offers;
// keep this walk sequential.
func (e *Engine) OfferArtifact(c *Creator, a *Artifact, pool []*Receiver) []Offer {
	ranked := RankReceivers(a, c, pool)

	var offers []Offer
	for _, rr := range ranked {
		offer := Offer{
			ArtifactID: a.ID,
			ReceiverID: rr.Receiver.ID,
			Score:      rr.Score,
		}
		offers = append(offers, offer)

		e.sink.OfferMade(OfferEvent{
			EventID:    uuid.NewString(),
			ArtifactID: a.ID,
			ReceiverID: rr.Receiver.ID,
			Score:      rr.Score,
			OccurredAt: time.Now(),
		})

		if c.FeedbackLoopEnabled {
			e.FeedbackLoop(c, a, AffirmationTag)
		}
	}
	return offers
}

// Offer runs a full registry-backed orchestration: loads the creator (with
// artifact history), the artifact, and the whole receiver pool, runs
// OfferArtifact, then persists the mutated artifact themes and expectation
// profile back to the registry.
func (e *Engine) Offer(creatorID, artifactID string) ([]Offer, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}

	c, a, pool, err := e.loadForScoring(creatorID, artifactID)
	if err != nil {
		return nil, err
	}

	offers := e.OfferArtifact(c, a, pool)

	if c.FeedbackLoopEnabled && len(offers) > 0 {
		if err := e.store.SaveArtifactThemes(a.ID, a.Themes); err != nil {
			return offers, fmt.Errorf("persist artifact themes: %w", err)
		}
		if err := e.store.SaveExpectationProfile(c.ID, c.ExpectationProfile); err != nil {
			return offers, fmt.Errorf("persist expectation profile: %w", err)
		}
	}
	return offers, nil
}

// Rank is a read-only registry-backed ranking: it loads the creator,
// artifact, and pool and returns the scored candidates without emitting
// events or running feedback. Nothing is mutated.
func (e *Engine) Rank(creatorID, artifactID string) ([]RankedReceiver, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}

	c, a, pool, err := e.loadForScoring(creatorID, artifactID)
	if err != nil {
		return nil, err
	}

	return RankReceivers(a, c, pool), nil
}

// loadForScoring loads the creator, artifact, and receiver pool for one
// scoring run. The offered artifact is dropped from the creator's loaded
// history: ArtifactHistory means previously produced artifacts, and the
// registry stores the offered one alongside them. Without the exclusion an
// artifact's own themes would count as shared meaning with itself.
func (e *Engine) loadForScoring(creatorID, artifactID string) (*Creator, *Artifact, []*Receiver, error) {
	c, err := e.store.GetCreator(creatorID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load creator %s: %w", creatorID, err)
	}
	a, err := e.store.GetArtifact(artifactID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load artifact %s: %w", artifactID, err)
	}
	pool, err := e.store.ListReceivers()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load receiver pool: %w", err)
	}

	history := c.ArtifactHistory[:0]
	for _, past := range c.ArtifactHistory {
		if past.ID != a.ID {
			history = append(history, past)
		}
	}
	c.ArtifactHistory = history

	return c, a, pool, nil
}

// --- Registry passthroughs ---

// RegisterCreator validates and stores a creator in the registry.
func (e *Engine) RegisterCreator(c *Creator) error {
	if e.store == nil {
		return ErrNoStore
	}
	if err := e.checkDimension(c.ExpectationProfile); err != nil {
		return fmt.Errorf("creator %s: %w", c.ID, err)
	}
	return e.store.UpsertCreator(c)
}

// RegisterReceiver validates and stores a receiver in the registry.
func (e *Engine) RegisterReceiver(r *Receiver) error {
	if e.store == nil {
		return ErrNoStore
	}
	if err := e.checkDimension(r.ValueVector); err != nil {
		return fmt.Errorf("receiver %s: %w", r.ID, err)
	}
	return e.store.UpsertReceiver(r)
}

// CreateArtifact validates and stores an artifact under a creator. An empty
// artifact ID gets a generated one. The artifact joins the creator's
// history, which future SharedMeaning calls will draw from.
func (e *Engine) CreateArtifact(creatorID string, a *Artifact) error {
	if e.store == nil {
		return ErrNoStore
	}
	if err := e.checkDimension(a.Vector); err != nil {
		return fmt.Errorf("artifact %s: %w", a.ID, err)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return e.store.InsertArtifact(creatorID, a)
}

// ListOffers returns the most recent journal entries, newest first.
func (e *Engine) ListOffers(limit int) ([]Offer, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	return e.store.ListOffers(limit)
}

// Close shuts down the sweep worker and the registry database.
func (e *Engine) Close() error {
	if e.cancelSweep != nil {
		e.cancelSweep()
	}
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// checkDimension enforces the configured vector length at the registry
// boundary, so the scoring pipeline never sees mismatched vectors.
func (e *Engine) checkDimension(vec []float64) error {
	if len(vec) != e.config.VectorDimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), e.config.VectorDimension)
	}
	return nil
}
