package domain

// RiskLevel is the process-wide risk regime set by the oracle collaborator.
type RiskLevel string

// Risk level constants.
const (
	RiskLevelNormal RiskLevel = "NORMAL"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// Sentiment multiplier bounds.
const (
	SentimentMultiplierMin = 0.5
	SentimentMultiplierMax = 1.5
)

// RiskSnapshot is an immutable copy of the shared risk context, taken at
// read time. Every field always holds a valid value; the zero-state of the
// context is the safe default (NORMAL, 1.0, no tail risk).
type RiskSnapshot struct {
	Level               RiskLevel
	SentimentMultiplier float64
	TailRisk            bool
}

// PositionScale returns the multiplier applied to position sizing under
// this snapshot. HIGH risk halves exposure, the sentiment multiplier scales
// it, and an active tail-risk flag blocks new entries entirely.
func (s RiskSnapshot) PositionScale() float64 {
	if s.TailRisk {
		return 0
	}
	scale := s.SentimentMultiplier
	if s.Level == RiskLevelHigh {
		scale *= 0.5
	}
	return scale
}
