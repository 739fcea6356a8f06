package domain

// EvolutionRecord is an append-only ledger entry created at deployment
// time. FinalPnl stays nil until the evaluation window closes.
type EvolutionRecord struct {
	VersionID          string // deployed candidate version
	Fingerprint        string // parameter fingerprint
	Reason             string // human-readable deployment reason
	EquityAtDeployment float64
	DeployedAtMs       int64 // Unix milliseconds
	Evaluated          bool
	FinalPnl           *float64 // nil until evaluated
	CreatedAtMs        int64    // record creation timestamp (ms)
}

// BlacklistEntry bars a parameter fingerprint from redeployment after a
// proven live loss.
type BlacklistEntry struct {
	Fingerprint string
	Loss        float64 // observed negative PnL
	Reason      string
	CreatedAtMs int64 // Unix milliseconds
}

// EvolutionStats summarizes the evolution ledger.
type EvolutionStats struct {
	TotalEvolutions int
	Evaluated       int
	Pending         int
	Blacklisted     int
	SuccessRate     float64 // evaluated-and-non-blacklisted / evaluated
}
