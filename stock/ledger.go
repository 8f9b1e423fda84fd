/*
ledger.go - Append-only movement log

PURPOSE:
  The Ledger is the only writer of stock entries. Append validates a
  draft, then runs the per-key critical section:

    lock(key)
      WithTx:
        resolve balance from the key's running balance
        compare-and-set the running balance
        insert the entry
    unlock(key)

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. ATOMIC: a failed append leaves entries and running balance untouched.
  3. SERIALIZED PER KEY: two appends to the same key never interleave.
     Appends to different keys proceed concurrently.

RETRIES:
  A lost compare-and-set (ErrConcurrentModification) or an unavailable
  distributed lock is retried with a short jittered backoff. Callers only
  see a *TransientError once every attempt failed.

CORRECTIONS:
  There is no reversal. A wrong receipt is corrected by an Issued (or a
  further Received) movement.
*/
package stock

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/stock-ledger/lock"
	"github.com/warp/stock-ledger/logging"
)

var tracer = otel.Tracer("github.com/warp/stock-ledger/stock")

const (
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = 10 * time.Millisecond
)

// Ledger appends and lists stock movements.
type Ledger struct {
	store       Store
	locker      lock.Locker
	clock       func() time.Time
	maxAttempts int
	backoff     time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLocker replaces the default in-process locker, e.g. with a
// distributed one when several processes share a database.
func WithLocker(l lock.Locker) Option {
	return func(led *Ledger) { led.locker = l }
}

// WithClock sets the source of created_at timestamps.
func WithClock(clock func() time.Time) Option {
	return func(led *Ledger) { led.clock = clock }
}

// WithRetry sets the number of attempts per append and the base backoff.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(led *Ledger) {
		if maxAttempts > 0 {
			led.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			led.backoff = backoff
		}
	}
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		locker:      lock.NewLocal(),
		clock:       time.Now,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now reads the ledger's clock.
func (l *Ledger) Now() time.Time { return l.clock() }

// Append validates d and records it. It returns the stored entry, with
// its id, creation time and balance.
func (l *Ledger) Append(ctx context.Context, d Draft) (Entry, error) {
	d = d.normalized()

	ctx, span := tracer.Start(ctx, "Ledger.Append", trace.WithAttributes(
		attribute.String("stock.key", d.Key.String()),
		attribute.String("stock.kind", string(d.Kind)),
	))
	defer span.End()

	if err := d.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid draft")
		return Entry{}, err
	}
	if err := l.checkReferences(ctx, d); err != nil {
		span.SetStatus(codes.Error, "invalid reference")
		return Entry{}, err
	}

	log := logging.FromContext(ctx).WithComponent("ledger")

	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		entry, err := l.appendOnce(ctx, d)
		if err == nil {
			span.SetAttributes(
				attribute.Int64("stock.balance", entry.Balance),
				attribute.Int("stock.attempts", attempt),
			)
			log.Debugw("appended movement",
				"id", entry.ID,
				"key", entry.Key.String(),
				"kind", entry.Kind,
				"balance", entry.Balance,
			)
			return entry, nil
		}
		if !IsRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "append failed")
			return Entry{}, err
		}

		lastErr = err
		log.Debugw("append conflict", "key", d.Key.String(), "attempt", attempt, "error", err)
		if attempt < l.maxAttempts {
			if err := l.wait(ctx, attempt); err != nil {
				return Entry{}, err
			}
		}
	}

	terr := &TransientError{Key: d.Key, Attempts: l.maxAttempts, Err: lastErr}
	span.RecordError(terr)
	span.SetStatus(codes.Error, "retries exhausted")
	log.Warnw("append gave up", "key", d.Key.String(), "attempts", l.maxAttempts, "error", lastErr)
	return Entry{}, terr
}

func (l *Ledger) appendOnce(ctx context.Context, d Draft) (Entry, error) {
	unlock, err := l.locker.Lock(ctx, lockKey(d.Key))
	if err != nil {
		return Entry{}, err
	}
	defer unlock()

	var entry Entry
	err = l.store.WithTx(ctx, func(tx Tx) error {
		res, err := ResolveBalance(ctx, tx, d.Key, d.Received, d.Issued)
		if err != nil {
			return err
		}

		entry = Entry{
			ID:                  EntryID(newID()),
			TransactionDate:     d.TransactionDate,
			Key:                 d.Key,
			Received:            d.Received,
			Issued:              d.Issued,
			Balance:             res.Balance,
			Kind:                d.Kind,
			GRNNumber:           d.GRNNumber,
			CustomerID:          d.CustomerID,
			DeliveryOrderNumber: d.DeliveryOrderNumber,
			CreatedAt:           l.clock().UTC(),
		}

		if err := tx.PutRunningBalance(ctx, d.Key, res.Balance, res.Version); err != nil {
			return err
		}
		return tx.InsertEntry(ctx, entry)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// checkReferences rejects ids that are not in the catalog at append time.
func (l *Ledger) checkReferences(ctx context.Context, d Draft) error {
	v := &ValidationError{}

	refs := []struct {
		kind  CatalogKind
		id    string
		field string
	}{
		{CatalogItems, string(d.Key.ItemID), "item_id"},
		{CatalogSizes, string(d.Key.SizeID), "size_id"},
		{CatalogCustomers, string(d.CustomerID), "customer_id"},
	}
	for _, ref := range refs {
		if ref.id == "" {
			continue
		}
		e, err := l.store.GetCatalogEntry(ctx, ref.kind, ref.id)
		if err != nil {
			return fmt.Errorf("look up %s: %w", ref.kind.Singular(), err)
		}
		if e == nil {
			v.Add(ref.field, fmt.Sprintf("unknown %s %q", ref.kind.Singular(), ref.id))
		}
	}
	return v.OrNil()
}

func (l *Ledger) wait(ctx context.Context, attempt int) error {
	d := l.backoff * time.Duration(attempt)
	if l.backoff > 0 {
		d += time.Duration(rand.Int63n(int64(l.backoff)))
	}
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the whole ledger in canonical order.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	return l.store.Entries(ctx)
}

// Latest returns the newest entry for key in canonical order, or nil.
func (l *Ledger) Latest(ctx context.Context, key StockKey) (*Entry, error) {
	return l.store.LatestForKey(ctx, NewStockKey(key.ItemID, key.SizeID, key.Brand))
}

func lockKey(k StockKey) string {
	return string(k.ItemID) + "\x00" + string(k.SizeID) + "\x00" + k.Brand
}
