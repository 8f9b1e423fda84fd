package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/stock-ledger/logging"
)

// =============================================================================
// CATALOG KINDS
// =============================================================================

// CatalogKind names one of the three lookup sets.
type CatalogKind string

const (
	CatalogItems     CatalogKind = "items"
	CatalogSizes     CatalogKind = "sizes"
	CatalogCustomers CatalogKind = "customers"
)

// CatalogKinds lists every kind, in display order.
var CatalogKinds = []CatalogKind{CatalogItems, CatalogSizes, CatalogCustomers}

func (k CatalogKind) Valid() bool {
	return k == CatalogItems || k == CatalogSizes || k == CatalogCustomers
}

// Singular is used in messages: "item", "size", "customer".
func (k CatalogKind) Singular() string {
	return strings.TrimSuffix(string(k), "s")
}

// CatalogEntry is an item, a size or a customer.
type CatalogEntry struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// DuplicateNameWarning is returned next to a created entry whose name was
// already taken. The entry is still created.
type DuplicateNameWarning struct {
	Kind       CatalogKind
	Name       string
	ExistingID string
}

func (w *DuplicateNameWarning) String() string {
	return fmt.Sprintf("a %s named %q already exists (id %s)", w.Kind.Singular(), w.Name, w.ExistingID)
}

func (w *DuplicateNameWarning) Error() string { return w.String() }

func (w *DuplicateNameWarning) Unwrap() error { return ErrDuplicateName }

// Default lookups added on first run.
var (
	DefaultItems = []string{"T-Shirt", "Jeans", "Hoodie", "Sneakers"}
	DefaultSizes = []string{"XS", "S", "M", "L", "XL", "XXL"}
)

// =============================================================================
// CATALOG
// =============================================================================

// Catalog manages the reference sets. Names are unique only softly:
// duplicates are flagged, not refused. Removal never cascades to ledger
// entries; see Names for how orphaned references are displayed.
type Catalog struct {
	store CatalogStore
	clock func() time.Time
}

func NewCatalog(store CatalogStore) *Catalog {
	return &Catalog{store: store, clock: time.Now}
}

// Add creates an entry named name (trimmed).
func (c *Catalog) Add(ctx context.Context, kind CatalogKind, name string) (CatalogEntry, *DuplicateNameWarning, error) {
	if !kind.Valid() {
		return CatalogEntry{}, nil, NewValidationError("kind", fmt.Sprintf("unknown catalog %q", kind))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return CatalogEntry{}, nil, NewValidationError("name", "is required")
	}

	existing, err := c.store.ListCatalog(ctx, kind)
	if err != nil {
		return CatalogEntry{}, nil, fmt.Errorf("list %s: %w", kind, err)
	}

	var warning *DuplicateNameWarning
	for _, e := range existing {
		if strings.EqualFold(e.Name, name) {
			warning = &DuplicateNameWarning{Kind: kind, Name: name, ExistingID: e.ID}
			break
		}
	}

	entry := CatalogEntry{ID: newID(), Name: name, CreatedAt: c.clock().UTC()}
	if err := c.store.AddCatalogEntry(ctx, kind, entry); err != nil {
		return CatalogEntry{}, nil, fmt.Errorf("add %s: %w", kind.Singular(), err)
	}

	if warning != nil {
		logging.FromContext(ctx).WithComponent("catalog").Warnw("duplicate catalog name",
			"kind", kind,
			"name", name,
			"id", entry.ID,
			"existing_id", warning.ExistingID,
		)
	}
	return entry, warning, nil
}

// Remove deletes an entry. Ledger entries that reference it are kept.
func (c *Catalog) Remove(ctx context.Context, kind CatalogKind, id string) error {
	if !kind.Valid() {
		return NewValidationError("kind", fmt.Sprintf("unknown catalog %q", kind))
	}
	return c.store.RemoveCatalogEntry(ctx, kind, strings.TrimSpace(id))
}

// List returns entries ordered by name ascending.
func (c *Catalog) List(ctx context.Context, kind CatalogKind) ([]CatalogEntry, error) {
	if !kind.Valid() {
		return nil, NewValidationError("kind", fmt.Sprintf("unknown catalog %q", kind))
	}
	return c.store.ListCatalog(ctx, kind)
}

// Get returns an entry or a *NotFoundError.
func (c *Catalog) Get(ctx context.Context, kind CatalogKind, id string) (CatalogEntry, error) {
	e, err := c.store.GetCatalogEntry(ctx, kind, id)
	if err != nil {
		return CatalogEntry{}, err
	}
	if e == nil {
		return CatalogEntry{}, &NotFoundError{Kind: kind, ID: id}
	}
	return *e, nil
}

// SeedDefaults fills the item and size catalogs with DefaultItems and
// DefaultSizes when they are empty. It returns the number of entries added.
func (c *Catalog) SeedDefaults(ctx context.Context) (int, error) {
	added := 0
	seeds := []struct {
		kind  CatalogKind
		names []string
	}{
		{CatalogItems, DefaultItems},
		{CatalogSizes, DefaultSizes},
	}
	for _, seed := range seeds {
		kind, names := seed.kind, seed.names
		existing, err := c.store.ListCatalog(ctx, kind)
		if err != nil {
			return added, fmt.Errorf("list %s: %w", kind, err)
		}
		if len(existing) > 0 {
			continue
		}
		for _, name := range names {
			if _, _, err := c.Add(ctx, kind, name); err != nil {
				return added, err
			}
			added++
		}
	}
	return added, nil
}

// Names loads every catalog into a lookup.
func (c *Catalog) Names(ctx context.Context) (*Names, error) {
	lists := make(map[CatalogKind][]CatalogEntry, len(CatalogKinds))
	for _, kind := range CatalogKinds {
		entries, err := c.store.ListCatalog(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		lists[kind] = entries
	}
	return NewNames(lists[CatalogItems], lists[CatalogSizes], lists[CatalogCustomers]), nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// =============================================================================
// NAMES - id to display name lookup
// =============================================================================

// OrphanLabel is shown for references to removed catalog entries.
const OrphanLabel = "(deleted)"

// Names resolves catalog ids for display. A nil *Names resolves every id
// to OrphanLabel.
type Names struct {
	items     map[ItemID]string
	sizes     map[SizeID]string
	customers map[CustomerID]string
}

func NewNames(items, sizes, customers []CatalogEntry) *Names {
	n := &Names{
		items:     make(map[ItemID]string, len(items)),
		sizes:     make(map[SizeID]string, len(sizes)),
		customers: make(map[CustomerID]string, len(customers)),
	}
	for _, e := range items {
		n.items[ItemID(e.ID)] = e.Name
	}
	for _, e := range sizes {
		n.sizes[SizeID(e.ID)] = e.Name
	}
	for _, e := range customers {
		n.customers[CustomerID(e.ID)] = e.Name
	}
	return n
}

func (n *Names) Item(id ItemID) string {
	if n != nil {
		if name, ok := n.items[id]; ok {
			return name
		}
	}
	return OrphanLabel
}

func (n *Names) Size(id SizeID) string {
	if n != nil {
		if name, ok := n.sizes[id]; ok {
			return name
		}
	}
	return OrphanLabel
}

// Customer returns "" for an empty id (non-Issued entries).
func (n *Names) Customer(id CustomerID) string {
	if id == "" {
		return ""
	}
	if n != nil {
		if name, ok := n.customers[id]; ok {
			return name
		}
	}
	return OrphanLabel
}

