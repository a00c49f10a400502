package adjustment

import "stockcore/internal/core/numerator"

const (
	// NumeratorPrefix for generated adjustment numbers (ADJ-2026-00001).
	NumeratorPrefix = "ADJ"

	// NumeratorStrategy is cached: adjustments are internal documents and
	// tolerate numbering gaps after restarts.
	NumeratorStrategy = numerator.StrategyCached
)
