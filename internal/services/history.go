package services

import "luckydraw/internal/models"

// History is the append-only ledger of completed draws, newest first.
// It is owned by a GameStore and relies on the store's lock.
type History struct {
	entries []models.DrawResult
}

// Record puts result at the front of the ledger.
func (h *History) Record(result models.DrawResult) {
	h.entries = append(h.entries, models.DrawResult{})
	copy(h.entries[1:], h.entries)
	h.entries[0] = result.Clone()
}

// Entries returns a copy of the ledger, newest first.
func (h *History) Entries() []models.DrawResult {
	out := make([]models.DrawResult, len(h.entries))
	for i, r := range h.entries {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of recorded draws.
func (h *History) Len() int { return len(h.entries) }

// Clear drops every entry.
func (h *History) Clear() { h.entries = nil }

// replace swaps in an imported ledger, which is expected newest first already.
func (h *History) replace(entries []models.DrawResult) {
	h.entries = make([]models.DrawResult, len(entries))
	for i, r := range entries {
		h.entries[i] = r.Clone()
	}
}
