/*
Package stock provides the inventory ledger engine.

PURPOSE:
  Turns an append-only list of stock movements into per-(item, size, brand)
  balances, low-stock alerts, top movers and filtered report views.
  Everything else in the repository (HTTP, SQL, spreadsheets) is plumbing
  around this package.

KEY CONCEPTS IN THIS FILE (types.go):
  - StockKey: the (item, size, brand) triple balances are tracked against
  - MovementKind: Received, Balance Forward, Issued
  - Entry: an immutable ledger row carrying its balance snapshot
  - Draft: what a client submits; becomes an Entry on Append
  - RunningBalance: the per-key counter advanced atomically with each append

INVARIANTS:
  1. Exactly one of Received/Issued is positive, and it matches the kind
  2. Entries are never updated or deleted; corrections are new entries
  3. Entry.Balance = previous running balance + Received - Issued

SEE ALSO:
  - ledger.go: Append and the per-key critical section
  - balance.go: Balance resolution
  - aggregate.go, filter.go, report.go: read side
*/
package stock

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ItemID string
type SizeID string
type CustomerID string
type EntryID string

// StockKey is the unit of balance tracking. Brand is free text, not a
// managed catalog entity.
type StockKey struct {
	ItemID ItemID
	SizeID SizeID
	Brand  string
}

// NewStockKey builds a key with a trimmed brand.
func NewStockKey(item ItemID, size SizeID, brand string) StockKey {
	return StockKey{ItemID: item, SizeID: size, Brand: strings.TrimSpace(brand)}
}

// Less is the natural key ordering: item, then size, then brand.
func (k StockKey) Less(other StockKey) bool {
	if k.ItemID != other.ItemID {
		return k.ItemID < other.ItemID
	}
	if k.SizeID != other.SizeID {
		return k.SizeID < other.SizeID
	}
	return k.Brand < other.Brand
}

func (k StockKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ItemID, k.SizeID, k.Brand)
}

// =============================================================================
// MOVEMENT KIND
// =============================================================================

type MovementKind string

const (
	KindReceived       MovementKind = "Received"
	KindBalanceForward MovementKind = "Balance Forward"
	KindIssued         MovementKind = "Issued"
)

func (k MovementKind) Valid() bool {
	switch k {
	case KindReceived, KindBalanceForward, KindIssued:
		return true
	}
	return false
}

// Inbound reports whether the kind adds stock.
func (k MovementKind) Inbound() bool {
	return k == KindReceived || k == KindBalanceForward
}

// =============================================================================
// ENTRY - Immutable ledger row
// =============================================================================

type Entry struct {
	ID              EntryID
	TransactionDate Date
	Key             StockKey
	Received        int64
	Issued          int64
	Balance         int64
	Kind            MovementKind

	GRNNumber           string
	CustomerID          CustomerID
	DeliveryOrderNumber string

	CreatedAt time.Time
}

// Delta is the signed effect of the entry on its key's stock.
func (e Entry) Delta() int64 { return e.Received - e.Issued }

// Precedes reports whether a sorts before b in the canonical ledger order:
// transaction_date desc, created_at desc, then id desc. IDs are UUIDv7 and
// therefore time-ordered, which breaks created_at ties deterministically.
func Precedes(a, b Entry) bool {
	if c := a.TransactionDate.Compare(b.TransactionDate); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Draft is a movement as submitted, before the ledger assigns id,
// creation time and balance.
type Draft struct {
	TransactionDate Date
	Key             StockKey
	Received        int64
	Issued          int64
	Kind            MovementKind

	GRNNumber           string
	CustomerID          CustomerID
	DeliveryOrderNumber string
}

// MaxQuantity bounds a single movement's quantity.
const MaxQuantity int64 = 1_000_000_000

// Received builds a Received draft.
func Received(date Date, key StockKey, qty int64, grn string) Draft {
	return Draft{TransactionDate: date, Key: key, Received: qty, Kind: KindReceived, GRNNumber: grn}
}

// BalanceForward builds a Balance Forward draft.
func BalanceForward(date Date, key StockKey, qty int64) Draft {
	return Draft{TransactionDate: date, Key: key, Received: qty, Kind: KindBalanceForward}
}

// Issued builds an Issued draft.
func Issued(date Date, key StockKey, qty int64, customer CustomerID, deliveryOrder string) Draft {
	return Draft{
		TransactionDate:     date,
		Key:                 key,
		Issued:              qty,
		Kind:                KindIssued,
		CustomerID:          customer,
		DeliveryOrderNumber: deliveryOrder,
	}
}

func (d Draft) normalized() Draft {
	d.Key = NewStockKey(ItemID(strings.TrimSpace(string(d.Key.ItemID))), SizeID(strings.TrimSpace(string(d.Key.SizeID))), d.Key.Brand)
	d.GRNNumber = strings.TrimSpace(d.GRNNumber)
	d.CustomerID = CustomerID(strings.TrimSpace(string(d.CustomerID)))
	d.DeliveryOrderNumber = strings.TrimSpace(d.DeliveryOrderNumber)
	return d
}

// Validate checks the mutual-exclusivity and required-field rules.
// Every violation is reported, not just the first.
func (d Draft) Validate() error {
	d = d.normalized()
	v := &ValidationError{}

	if d.TransactionDate.IsZero() {
		v.Add("transaction_date", "is required")
	}
	if d.Key.ItemID == "" {
		v.Add("item_id", "is required")
	}
	if d.Key.SizeID == "" {
		v.Add("size_id", "is required")
	}
	if d.Key.Brand == "" {
		v.Add("brand", "is required")
	}
	if d.Received < 0 {
		v.Add("received_quantity", "must not be negative")
	}
	if d.Issued < 0 {
		v.Add("issued_quantity", "must not be negative")
	}
	if d.Received > MaxQuantity {
		v.Add("received_quantity", fmt.Sprintf("must be at most %d", MaxQuantity))
	}
	if d.Issued > MaxQuantity {
		v.Add("issued_quantity", fmt.Sprintf("must be at most %d", MaxQuantity))
	}
	if d.Received > 0 && d.Issued > 0 {
		v.Add("quantity", "received and issued quantities are mutually exclusive")
	}
	if d.Received+d.Issued <= 0 && d.Received >= 0 && d.Issued >= 0 {
		v.Add("quantity", "must be greater than 0")
	}

	switch {
	case !d.Kind.Valid():
		v.Add("movement_kind", fmt.Sprintf("unknown kind %q", d.Kind))
	case d.Kind.Inbound():
		if d.Issued > 0 {
			v.Add("issued_quantity", fmt.Sprintf("must be 0 for %s", d.Kind))
		}
		if d.CustomerID != "" {
			v.Add("customer_id", fmt.Sprintf("must be empty for %s", d.Kind))
		}
		if d.DeliveryOrderNumber != "" {
			v.Add("delivery_order_number", fmt.Sprintf("must be empty for %s", d.Kind))
		}
		if d.Kind == KindReceived && d.GRNNumber == "" {
			v.Add("grn_number", "is required for Received")
		}
		if d.Kind == KindBalanceForward && d.GRNNumber != "" {
			v.Add("grn_number", "must be empty for Balance Forward")
		}
	case d.Kind == KindIssued:
		if d.Received > 0 {
			v.Add("received_quantity", "must be 0 for Issued")
		}
		if d.CustomerID == "" {
			v.Add("customer_id", "is required for Issued")
		}
		if d.DeliveryOrderNumber == "" {
			v.Add("delivery_order_number", "is required for Issued")
		}
		if d.GRNNumber != "" {
			v.Add("grn_number", "must be empty for Issued")
		}
	}

	return v.OrNil()
}

// =============================================================================
// RUNNING BALANCE - Per-key counter
// =============================================================================

// RunningBalance is the stored balance of a stock key after its most
// recently appended entry. Version increases by one per append and is
// used for compare-and-set.
type RunningBalance struct {
	Key       StockKey
	Balance   int64
	Version   int64
	UpdatedAt time.Time
}
