package resonance

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackLoop applies one round of post-offer adaptation: the tag is
// appended to the artifact's themes and every element of the creator's
// expectation profile is decayed by the fixed adaptation rate. Both entities
// are mutated in place; an evolution event goes to the sink. Calling it
// twice appends twice and decays twice; feedback accumulates.
func (e *Engine) FeedbackLoop(c *Creator, a *Artifact, tag string) {
	a.Themes = append(a.Themes, tag)
	for i := range c.ExpectationProfile {
		c.ExpectationProfile[i] *= AdaptationRate
	}

	e.sink.ArtifactEvolved(EvolutionEvent{
		EventID:    uuid.NewString(),
		ArtifactID: a.ID,
		AppliedTag: tag,
		OccurredAt: time.Now(),
	})
}
