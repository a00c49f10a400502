package issue

import "stockcore/internal/core/numerator"

const (
	// NumeratorPrefix for generated issue numbers (IS-2026-00001).
	NumeratorPrefix = "IS"

	// NumeratorStrategy is strict: issues feed accounting.
	NumeratorStrategy = numerator.StrategyStrict
)
