package stock

import (
	"fmt"
	"sort"
	"strings"
)

// View narrows a listing to one direction of movement.
type View string

const (
	ViewAll      View = "all"
	ViewReceived View = "received"
	ViewIssued   View = "issued"
)

// ParseView accepts "", "all", "received" and "issued" in any case.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case "", ViewAll:
		return ViewAll, nil
	case ViewReceived, ViewIssued:
		return v, nil
	default:
		return "", NewValidationError("view", fmt.Sprintf("unknown view %q", s))
	}
}

// Query is a conjunction of predicates. Zero-valued fields match
// everything.
type Query struct {
	// Search is a case-insensitive substring of the item name, the size
	// name or the brand.
	Search string

	ItemID ItemID
	SizeID SizeID
	Brand  string

	// From and To bound transaction_date, both inclusive.
	From Date
	To   Date

	View View
}

func (q Query) normalized() Query {
	q.Search = strings.TrimSpace(q.Search)
	q.ItemID = ItemID(strings.TrimSpace(string(q.ItemID)))
	q.SizeID = SizeID(strings.TrimSpace(string(q.SizeID)))
	q.Brand = strings.TrimSpace(q.Brand)
	if q.View == "" {
		q.View = ViewAll
	}
	return q
}

// IsZero reports whether no predicate is set.
func (q Query) IsZero() bool {
	q = q.normalized()
	return q.Search == "" && q.ItemID == "" && q.SizeID == "" && q.Brand == "" &&
		q.From.IsZero() && q.To.IsZero() && q.View == ViewAll
}

// Validate rejects an inverted date range and an unknown view.
func (q Query) Validate() error {
	q = q.normalized()
	v := &ValidationError{}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.Compare(q.To) > 0 {
		v.Add("from", "must not be after to")
	}
	if _, err := ParseView(string(q.View)); err != nil {
		v.Add("view", fmt.Sprintf("unknown view %q", q.View))
	}
	return v.OrNil()
}

// Matches reports whether e satisfies every predicate. names resolves
// ids for the search predicate; orphaned ids search as OrphanLabel.
func (q Query) Matches(e Entry, names *Names) bool {
	q = q.normalized()

	if q.ItemID != "" && e.Key.ItemID != q.ItemID {
		return false
	}
	if q.SizeID != "" && e.Key.SizeID != q.SizeID {
		return false
	}
	if q.Brand != "" && e.Key.Brand != q.Brand {
		return false
	}
	if !q.From.IsZero() && e.TransactionDate.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.TransactionDate.After(q.To) {
		return false
	}

	switch q.View {
	case ViewReceived:
		if e.Received <= 0 {
			return false
		}
	case ViewIssued:
		if e.Issued <= 0 {
			return false
		}
	}

	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(names.Item(e.Key.ItemID)), needle) &&
			!strings.Contains(strings.ToLower(names.Size(e.Key.SizeID)), needle) &&
			!strings.Contains(strings.ToLower(e.Key.Brand), needle) {
			return false
		}
	}
	return true
}

// Summary renders the active predicates for a report header, e.g.
// `Search: "jea"; Item: Jeans; From: 2024-01-01`.
func (q Query) Summary(names *Names) string {
	if q.IsZero() {
		return "All records"
	}
	q = q.normalized()

	var parts []string
	if q.Search != "" {
		parts = append(parts, fmt.Sprintf("Search: %q", q.Search))
	}
	if q.ItemID != "" {
		parts = append(parts, "Item: "+names.Item(q.ItemID))
	}
	if q.SizeID != "" {
		parts = append(parts, "Size: "+names.Size(q.SizeID))
	}
	if q.Brand != "" {
		parts = append(parts, "Brand: "+q.Brand)
	}
	if !q.From.IsZero() {
		parts = append(parts, "From: "+q.From.String())
	}
	if !q.To.IsZero() {
		parts = append(parts, "To: "+q.To.String())
	}
	switch q.View {
	case ViewReceived:
		parts = append(parts, "View: Received")
	case ViewIssued:
		parts = append(parts, "View: Issued")
	}

	return strings.Join(parts, "; ")
}

// Filter returns the entries matching q, in their input order.
func Filter(entries []Entry, q Query, names *Names) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if q.Matches(e, names) {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// FACETS - values offered by the filter dropdowns
// =============================================================================

// Facet is a selectable filter value.
type Facet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Facets lists the distinct items, sizes and brands present in a ledger,
// sorted by display name.
type Facets struct {
	Items  []Facet  `json:"items"`
	Sizes  []Facet  `json:"sizes"`
	Brands []string `json:"brands"`
}

func FacetsOf(entries []Entry, names *Names) Facets {
	items := make(map[ItemID]struct{})
	sizes := make(map[SizeID]struct{})
	brands := make(map[string]struct{})
	for _, e := range entries {
		items[e.Key.ItemID] = struct{}{}
		sizes[e.Key.SizeID] = struct{}{}
		brands[e.Key.Brand] = struct{}{}
	}

	f := Facets{
		Items:  make([]Facet, 0, len(items)),
		Sizes:  make([]Facet, 0, len(sizes)),
		Brands: make([]string, 0, len(brands)),
	}
	for id := range items {
		f.Items = append(f.Items, Facet{ID: string(id), Name: names.Item(id)})
	}
	for id := range sizes {
		f.Sizes = append(f.Sizes, Facet{ID: string(id), Name: names.Size(id)})
	}
	for b := range brands {
		f.Brands = append(f.Brands, b)
	}

	sortFacets(f.Items)
	sortFacets(f.Sizes)
	sort.Strings(f.Brands)
	return f
}

func sortFacets(fs []Facet) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Name != fs[j].Name {
			return fs[i].Name < fs[j].Name
		}
		return fs[i].ID < fs[j].ID
	})
}
