package resonance

import (
	"math"
	"testing"
)

// captureSink records every event for assertions.
type captureSink struct {
	offers     []OfferEvent
	evolutions []EvolutionEvent
}

func (s *captureSink) OfferMade(ev OfferEvent)           { s.offers = append(s.offers, ev) }
func (s *captureSink) ArtifactEvolved(ev EvolutionEvent) { s.evolutions = append(s.evolutions, ev) }

func TestOfferArtifactFeedbackDisabled(t *testing.T) {
	sink := &captureSink{}
	engine := New(sink)

	a := &Artifact{ID: "a1", Vector: []float64{1, 0}, Themes: []string{"joy"}}
	c := &Creator{ID: "mira", ExpectationProfile: []float64{0.5, 0.5}}
	pool := []*Receiver{
		{ID: "r1", ValueVector: []float64{1, 0}, SentimentProfile: []string{"joy"}, ReputationScore: 0.9},
		{ID: "r2", ValueVector: []float64{1, 0}, SentimentProfile: []string{"joy"}, ReputationScore: 0.3},
	}

	offers := engine.OfferArtifact(c, a, pool)

	if len(offers) != 1 {
		t.Fatalf("expected 1 offer (r2 filtered by reputation), got %d", len(offers))
	}
	if offers[0].ReceiverID != "r1" {
		t.Errorf("expected offer to r1, got %q", offers[0].ReceiverID)
	}
	// No transference (no history), perfect resonance: combined ~1.0.
	if math.Abs(offers[0].Score-1.0) > 0.001 {
		t.Errorf("expected combined score ~1.0, got %.6f", offers[0].Score)
	}

	if len(sink.offers) != 1 {
		t.Errorf("expected 1 offer event, got %d", len(sink.offers))
	}
	if sink.offers[0].ArtifactID != "a1" || sink.offers[0].ReceiverID != "r1" {
		t.Errorf("offer event fields wrong: %+v", sink.offers[0])
	}
	if len(sink.evolutions) != 0 {
		t.Errorf("feedback disabled: expected 0 evolution events, got %d", len(sink.evolutions))
	}
	if len(a.Themes) != 1 {
		t.Errorf("feedback disabled: themes must not grow, got %v", a.Themes)
	}
	if c.ExpectationProfile[0] != 0.5 {
		t.Errorf("feedback disabled: expectation profile must not decay, got %v", c.ExpectationProfile)
	}
}

func TestOfferArtifactFeedbackEnabled(t *testing.T) {
	sink := &captureSink{}
	engine := New(sink)

	a := &Artifact{ID: "a1", Vector: []float64{1, 0}, Themes: []string{"joy"}}
	c := &Creator{ID: "mira", ExpectationProfile: []float64{0.5, 0.5}, FeedbackLoopEnabled: true}
	pool := []*Receiver{
		{ID: "r1", ValueVector: []float64{1, 0}, SentimentProfile: []string{"joy"}, ReputationScore: 0.9},
	}

	engine.OfferArtifact(c, a, pool)

	if len(sink.evolutions) != 1 {
		t.Fatalf("expected exactly 1 evolution event, got %d", len(sink.evolutions))
	}
	if sink.evolutions[0].AppliedTag != AffirmationTag {
		t.Errorf("expected tag %q, got %q", AffirmationTag, sink.evolutions[0].AppliedTag)
	}
	if len(a.Themes) != 2 || a.Themes[1] != AffirmationTag {
		t.Errorf("expected themes [joy affirmation], got %v", a.Themes)
	}
	for i, v := range c.ExpectationProfile {
		if math.Abs(v-0.5*AdaptationRate) > 1e-9 {
			t.Errorf("profile[%d] not decayed by %.2f: got %.6f", i, AdaptationRate, v)
		}
	}
}

func TestOfferArtifactDriftAcrossRankedList(t *testing.T) {
	// Feedback runs after every single offer, so with two eligible receivers
	// the artifact gathers two tags and the profile decays twice.
	sink := &captureSink{}
	engine := New(sink)

	a := &Artifact{ID: "a1", Vector: []float64{1, 0}, Themes: []string{"joy"}}
	c := &Creator{ID: "mira", ExpectationProfile: []float64{1.0}, FeedbackLoopEnabled: true}
	pool := []*Receiver{
		{ID: "r1", ValueVector: []float64{1, 0}, ReputationScore: 0.9},
		{ID: "r2", ValueVector: []float64{1, 0}, ReputationScore: 0.8},
	}

	offers := engine.OfferArtifact(c, a, pool)

	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}
	if len(sink.evolutions) != 2 {
		t.Errorf("expected 2 evolution events, got %d", len(sink.evolutions))
	}
	if len(a.Themes) != 3 {
		t.Errorf("expected 3 themes after two feedback rounds, got %v", a.Themes)
	}
	want := 1.0 * AdaptationRate * AdaptationRate
	if math.Abs(c.ExpectationProfile[0]-want) > 1e-9 {
		t.Errorf("expected profile %.6f after two decays, got %.6f", want, c.ExpectationProfile[0])
	}
}

func TestOfferArtifactEmptyPool(t *testing.T) {
	sink := &captureSink{}
	engine := New(sink)

	a := &Artifact{ID: "a1", Vector: []float64{1, 0}}
	c := &Creator{ID: "mira", FeedbackLoopEnabled: true}

	offers := engine.OfferArtifact(c, a, nil)
	if len(offers) != 0 {
		t.Errorf("empty pool: expected no offers, got %d", len(offers))
	}
	if len(sink.offers) != 0 || len(sink.evolutions) != 0 {
		t.Error("empty pool must produce no events at all")
	}
}

func TestOfferArtifactRankOrder(t *testing.T) {
	sink := &captureSink{}
	engine := New(sink)

	a := &Artifact{ID: "a1", Vector: []float64{1, 0}, Themes: []string{"joy"}}
	c := &Creator{ID: "mira"}
	pool := []*Receiver{
		{ID: "weak", ValueVector: []float64{0, 1}, ReputationScore: 0.8},
		{ID: "strong", ValueVector: []float64{1, 0}, SentimentProfile: []string{"joy"}, ReputationScore: 0.8},
	}

	offers := engine.OfferArtifact(c, a, pool)
	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}
	if offers[0].ReceiverID != "strong" || offers[1].ReceiverID != "weak" {
		t.Errorf("offers out of rank order: %q then %q", offers[0].ReceiverID, offers[1].ReceiverID)
	}
}

func TestFeedbackLoopAccumulates(t *testing.T) {
	sink := &captureSink{}
	engine := New(sink)

	a := &Artifact{ID: "a1", Themes: []string{"joy"}}
	c := &Creator{ID: "mira", ExpectationProfile: []float64{0.8, 0.4}}

	engine.FeedbackLoop(c, a, "affirmation")
	engine.FeedbackLoop(c, a, "affirmation")

	if len(a.Themes) != 3 {
		t.Errorf("expected tag appended twice, got %v", a.Themes)
	}
	want0 := 0.8 * AdaptationRate * AdaptationRate
	if math.Abs(c.ExpectationProfile[0]-want0) > 1e-9 {
		t.Errorf("expected cumulative decay %.6f, got %.6f", want0, c.ExpectationProfile[0])
	}
	if len(sink.evolutions) != 2 {
		t.Errorf("expected 2 evolution events, got %d", len(sink.evolutions))
	}
	for _, ev := range sink.evolutions {
		if ev.ArtifactID != "a1" || ev.AppliedTag != "affirmation" {
			t.Errorf("evolution event fields wrong: %+v", ev)
		}
		if ev.EventID == "" {
			t.Error("evolution event missing ID")
		}
	}
}

func TestNewDefaultsToLogSink(t *testing.T) {
	engine := New(nil)
	if engine.sink == nil {
		t.Fatal("nil sink should default to LogSink")
	}
	if _, ok := engine.sink.(*LogSink); !ok {
		t.Errorf("expected *LogSink, got %T", engine.sink)
	}
}
