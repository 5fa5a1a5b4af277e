package core

import "sync"

// TokenUsage captures token and cost accounting for a response or an
// aggregate across seats. Counters are additive and safe to sum
// element-wise.
type TokenUsage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// Add returns the element-wise sum of two usages.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		Cost:             u.Cost + other.Cost,
	}
}

// CostAggregator sums token usage across seats. Missing per-seat usage
// contributes zero. Safe for concurrent use.
type CostAggregator struct {
	mu    sync.Mutex
	total TokenUsage
}

// NewCostAggregator creates an empty aggregator.
func NewCostAggregator() *CostAggregator { return &CostAggregator{} }

// Record adds one seat's usage; nil is treated as zero.
func (a *CostAggregator) Record(usage *TokenUsage) {
	if usage == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = a.total.Add(*usage)
}

// Total returns the accumulated usage.
func (a *CostAggregator) Total() TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// SumUsage is a pure reduction over seat results, treating absent usage as
// zero.
func SumUsage(results []SeatResult) TokenUsage {
	var total TokenUsage
	for _, r := range results {
		if r.Usage != nil {
			total = total.Add(*r.Usage)
		}
	}
	return total
}
