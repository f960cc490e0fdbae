package resonance

import "math"

// --- Cosine distance ---

// CosineDistance computes 1 - cos(a, b) with an epsilon-stabilized
// denominator, so a zero-norm vector yields a distance of exactly 1 rather
// than a division by zero. Vectors of unequal length are paired positionally
// and truncated to the shorter one. Result is typically in [0, 2].
func CosineDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)+cosineEpsilon)
}

// --- Resonance ---

// EvaluateResonance blends content similarity and sentiment alignment
// between one artifact and one receiver.
//
//	resonance = 0.7×(1 − distance) + 0.3×(matched sentiment tags / tag count)
//
// Pure and deterministic; neither entity is touched.
func EvaluateResonance(a *Artifact, r *Receiver) float64 {
	contentSimilarity := 1 - CosineDistance(a.Vector, r.ValueVector)

	matched := 0
	for _, tag := range r.SentimentProfile {
		if containsTheme(a.Themes, tag) {
			matched++
		}
	}
	denom := len(r.SentimentProfile)
	if denom < 1 {
		denom = 1
	}
	sentimentAlignment := float64(matched) / float64(denom)

	return 0.7*contentSimilarity + 0.3*sentimentAlignment
}

// --- Affinity ---

// SocialBond measures how much prior engagement a receiver has with a
// creator: occurrences of the creator's ID in the receiver's interaction
// history, saturating at 5, normalized to [0, 1].
func SocialBond(c *Creator, r *Receiver) float64 {
	count := 0
	for _, id := range r.InteractionHistory {
		if id == c.ID {
			count++
		}
	}
	if count > socialBondCap {
		count = socialBondCap
	}
	return float64(count) / socialBondCap
}

// SharedMeaning counts the artifact's theme entries that connect to either
// the creator's past thematic history or the receiver's sentiment profile,
// capped at 10. Membership is tested once per artifact theme entry;
// duplicate occurrences in the creator's history do not multiply the count.
func SharedMeaning(a *Artifact, c *Creator, r *Receiver) float64 {
	creatorThemes := make(map[string]bool)
	for _, past := range c.ArtifactHistory {
		for _, theme := range past.Themes {
			creatorThemes[theme] = true
		}
	}

	count := 0
	for _, theme := range a.Themes {
		if creatorThemes[theme] || containsTheme(r.SentimentProfile, theme) {
			count++
		}
	}
	if count > sharedMeaningCap {
		count = sharedMeaningCap
	}
	return float64(count)
}

// TransferenceValue models how relational history amplifies thematic
// relevance: the product of social bond and shared meaning. With zero social
// history it collapses to zero no matter how strong the thematic overlap;
// relevance without a relationship contributes only through resonance.
func TransferenceValue(a *Artifact, c *Creator, r *Receiver) float64 {
	return SocialBond(c, r) * SharedMeaning(a, c, r)
}

// CombinedScore is the ranking sort key: resonance plus transference.
func CombinedScore(a *Artifact, c *Creator, r *Receiver) float64 {
	return EvaluateResonance(a, r) + TransferenceValue(a, c, r)
}

// containsTheme reports whether tag appears in themes. Exact string match;
// IDs and tags are opaque.
func containsTheme(themes []string, tag string) bool {
	for _, t := range themes {
		if t == tag {
			return true
		}
	}
	return false
}
