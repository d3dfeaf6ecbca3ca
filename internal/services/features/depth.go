package features

import "MarketPull/internal/domain/models"

// SummarizeDepth condenses one side of the order book into its top-N levels
// plus base (Σ qty) and quote (Σ price·qty) totals over exactly those
// levels. Levels are assumed pre-sorted by the source (bids descending,
// asks ascending). Empty input yields zero totals and no levels.
func SummarizeDepth(side string, levels []models.PriceLevel, topN int) models.DepthSnapshot {
	if topN > len(levels) {
		topN = len(levels)
	}
	if topN < 0 {
		topN = 0
	}
	top := levels[:topN]

	out := models.DepthSnapshot{
		Side:   side,
		Levels: make([]models.PriceLevel, len(top)),
	}
	copy(out.Levels, top)
	for _, lvl := range top {
		out.BaseTotal += lvl.Qty
		out.QuoteTotal += lvl.Price * lvl.Qty
	}
	return out
}
