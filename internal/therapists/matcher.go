package therapists

import (
	"context"
	"fmt"
	"strings"
)

// MaxResults caps every search result.
const MaxResults = 10

// ActiveLister is the storage needed for matching.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]Therapist, error)
}

// SearchParams are optional case-insensitive substring filters, combined with AND.
type SearchParams struct {
	Specialty string `json:"specialty,omitempty"`
	Insurance string `json:"insurance,omitempty"`
	Query     string `json:"query,omitempty"`
}

// Matcher finds therapists for an inquiry.
type Matcher struct {
	store ActiveLister
	limit int
}

// NewMatcher builds a matcher over the store.
func NewMatcher(store ActiveLister) *Matcher {
	return &Matcher{store: store, limit: MaxResults}
}

// Search filters active therapists. When the filters exclude everyone it returns
// the unfiltered active list instead, so the user is always offered someone.
func (m *Matcher) Search(ctx context.Context, params SearchParams) ([]Therapist, error) {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("therapists: search: %w", err)
	}

	filtered := make([]Therapist, 0, len(active))
	for _, t := range active {
		if matches(t, params) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		filtered = active
	}
	if len(filtered) > m.limit {
		filtered = filtered[:m.limit]
	}
	return filtered, nil
}

func matches(t Therapist, p SearchParams) bool {
	if s := normalize(p.Specialty); s != "" && !anyContains(t.Specialties, s) {
		return false
	}
	if ins := normalize(p.Insurance); ins != "" && !anyContains(t.AcceptedInsurance, ins) {
		return false
	}
	if q := normalize(p.Query); q != "" {
		if !strings.Contains(strings.ToLower(t.Name), q) &&
			!strings.Contains(strings.ToLower(t.Bio), q) &&
			!anyContains(t.Specialties, q) {
			return false
		}
	}
	return true
}

func anyContains(values []string, needle string) bool {
	for _, v := range values {
		lv := strings.ToLower(v)
		if lv != "" && (strings.Contains(lv, needle) || strings.Contains(needle, lv)) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
