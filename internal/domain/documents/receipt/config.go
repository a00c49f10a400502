package receipt

import "stockcore/internal/core/numerator"

const (
	// NumeratorPrefix for generated receipt numbers (RC-2026-00001).
	NumeratorPrefix = "RC"

	// NumeratorStrategy is strict: receipts feed accounting, so numbers
	// must be sequential without gaps.
	NumeratorStrategy = numerator.StrategyStrict
)
