package transfer

import "stockcore/internal/core/numerator"

const (
	// NumeratorPrefix for generated transfer numbers (TR-2026-00001).
	NumeratorPrefix = "TR"

	// NumeratorStrategy is cached: transfers are internal documents and
	// tolerate numbering gaps after restarts.
	NumeratorStrategy = numerator.StrategyCached
)
