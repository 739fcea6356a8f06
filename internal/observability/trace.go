package observability

import "github.com/rs/zerolog"

// Trace emits one structured trace entry for a pipeline event. Every
// suggestion, validator outcome, and deployment or rejection produces
// exactly one of these; external observers consume them from the log
// stream.
func Trace(log zerolog.Logger, stage, outcome, diagnostics string) {
	log.Info().
		Str("stage", stage).
		Str("outcome", outcome).
		Str("diagnostics", diagnostics).
		Msg("trace")
}
