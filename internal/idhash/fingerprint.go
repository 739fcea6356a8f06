package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"evolab/internal/domain"
)

// ComputeFingerprint computes a deterministic parameter fingerprint for a
// strategy definition using SHA256 over the canonical parameter list:
// strategy type plus sorted key=value pairs of every set parameter.
// Returns hex-encoded hash (64 characters).
//
// Two definitions with identical parameters always produce the same
// fingerprint regardless of JSON field order or formatting.
func ComputeFingerprint(cfg domain.StrategyConfig) string {
	params := canonicalParams(cfg)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := cfg.StrategyType
	for _, k := range keys {
		data += "|" + k + "=" + params[k]
	}

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRawFingerprint fingerprints an unparseable definition by hashing
// its raw bytes. Used so blacklist identity stays defined even for
// candidates that fail the syntax audit.
func ComputeRawFingerprint(definition string) string {
	hash := sha256.Sum256([]byte(definition))
	return hex.EncodeToString(hash[:])
}

// canonicalParams flattens the set parameters of a config into a string map.
func canonicalParams(cfg domain.StrategyConfig) map[string]string {
	params := make(map[string]string)

	putInt := func(key string, v *int) {
		if v != nil {
			params[key] = strconv.Itoa(*v)
		}
	}
	putFloat := func(key string, v *float64) {
		if v != nil {
			params[key] = formatFloat(*v)
		}
	}

	putInt("fast_period", cfg.FastPeriod)
	putInt("slow_period", cfg.SlowPeriod)
	putInt("rsi_period", cfg.RSIPeriod)
	putFloat("rsi_oversold", cfg.RSIOversold)
	putFloat("rsi_overbought", cfg.RSIOverbought)
	putFloat("stop_loss_pct", cfg.StopLossPct)
	putFloat("take_profit_pct", cfg.TakeProfitPct)
	putFloat("position_fraction", cfg.PositionFraction)
	putFloat("min_confidence", cfg.MinConfidence)

	return params
}

// formatFloat renders a float canonically: shortest representation that
// round-trips, so 0.10 and 0.1 fingerprint identically.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
