package search

import (
	"strings"
	"sync"
)

// History keeps each user's recent queries in memory, newest first, for the
// prefix suggestions endpoint. Repeating a query moves it to the front
// instead of storing it twice.
type History struct {
	mu      sync.RWMutex
	queries map[string][]string
	limit   int
}

// NewHistory creates a history keeping at most limit queries per user
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{
		queries: make(map[string][]string),
		limit:   limit,
	}
}

// Record stores a query for a user
func (h *History) Record(userID, query string) {
	query = strings.TrimSpace(query)
	if userID == "" || query == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.queries[userID]
	for i, q := range list {
		if strings.EqualFold(q, query) {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}

	list = append([]string{query}, list...)
	if len(list) > h.limit {
		list = list[:h.limit]
	}
	h.queries[userID] = list
}

// Suggestions returns the user's recent queries starting with the prefix,
// newest first. An empty prefix returns the plain recent history.
func (h *History) Suggestions(userID, prefix string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}
	lowered := strings.ToLower(strings.TrimSpace(prefix))

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := []string{}
	for _, q := range h.queries[userID] {
		if lowered == "" || strings.HasPrefix(strings.ToLower(q), lowered) {
			out = append(out, q)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
