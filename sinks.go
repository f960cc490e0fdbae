package resonance

import "log"

// EventSink receives offer and evolution events from the engine.
// Implementations must be non-blocking; the engine fires and forgets.
// Built-in: LogSink, JournalSink (SQLite-backed), MultiSink.
type EventSink interface {
	OfferMade(ev OfferEvent)
	ArtifactEvolved(ev EvolutionEvent)
}

// LogSink renders events as human-readable log lines. The two IDs are the
// contract; the text itself is not.
type LogSink struct{}

func (LogSink) OfferMade(ev OfferEvent) {
	log.Printf("[resonance] Offering '%s' to receiver '%s'.", ev.ArtifactID, ev.ReceiverID)
}

func (LogSink) ArtifactEvolved(ev EvolutionEvent) {
	log.Printf("[resonance] Artifact '%s' evolved via resonance (tag=%s)", ev.ArtifactID, ev.AppliedTag)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) OfferMade(ev OfferEvent) {
	for _, s := range m {
		s.OfferMade(ev)
	}
}

func (m MultiSink) ArtifactEvolved(ev EvolutionEvent) {
	for _, s := range m {
		s.ArtifactEvolved(ev)
	}
}
