package domain

// Suggestion is the consumed contract from the reasoning collaborator:
// a proposed change to the active decision logic.
type Suggestion struct {
	Reason          string  // why the change is proposed
	ProposedChanges string  // JSON StrategyConfig document
	Confidence      float64 // collaborator's confidence, [0, 1]
	Regime          string  // originating market regime label, may be empty
}

// Candidate is an immutable proposed unit of decision logic. It is created
// by the orchestrator on suggestion intake and discarded if any validator
// rejects; a later evolution produces a new candidate, never mutates one.
type Candidate struct {
	VersionID   string // unique version identifier
	Definition  string // JSON source of the strategy definition
	Fingerprint string // canonical parameter fingerprint (blacklist identity)
	CreatedAtMs int64  // Unix milliseconds
	Regime      string // originating regime label
	Reason      string // human-readable reason from the suggestion
}
