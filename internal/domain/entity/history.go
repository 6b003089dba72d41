package entity

import "time"

// HistoryLimit is the number of analyses kept per history.
const HistoryLimit = 5

// AnalysisHistoryEntry is one completed analysis.
type AnalysisHistoryEntry struct {
	ID         string          `json:"id"`
	ImageURLs  []string        `json:"image_urls"`
	Result     *AnalysisResult `json:"result"`
	CapturedAt time.Time       `json:"captured_at"`
}

// History keeps the most recent analyses, newest first. Not safe for
// concurrent use; the owner serialises access.
type History struct {
	limit   int
	entries []AnalysisHistoryEntry
}

// NewHistory creates a history capped at limit entries (HistoryLimit if limit <= 0).
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return &History{limit: limit}
}

// Add prepends the entry and drops the oldest one past the cap.
func (h *History) Add(entry AnalysisHistoryEntry) {
	h.entries = append([]AnalysisHistoryEntry{entry}, h.entries...)
	if len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
}

// Entries returns a copy, newest first.
func (h *History) Entries() []AnalysisHistoryEntry {
	out := make([]AnalysisHistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Get finds an entry by ID.
func (h *History) Get(id string) (AnalysisHistoryEntry, bool) {
	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return AnalysisHistoryEntry{}, false
}

// Latest returns the newest entry.
func (h *History) Latest() (AnalysisHistoryEntry, bool) {
	if len(h.entries) == 0 {
		return AnalysisHistoryEntry{}, false
	}
	return h.entries[0], true
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	return len(h.entries)
}
