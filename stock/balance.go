/*
balance.go - Balance resolution for a new movement

ALGORITHM:
  previous = running balance of the key (0 for a key never written)
  balance  = previous + received - issued  (rejected if it overflows int64)

  The running balance is the counter advanced by every append to the key,
  so "previous" always reflects every entry appended before this one, in
  append order. It does not depend on transaction_date, which means a
  back-dated movement still sees every earlier append. The stored balance
  of the most recently appended entry therefore always equals
  sum(received) - sum(issued) over the key's history.

WHY A COUNTER:
  Looking up "the latest row by date" and then inserting is a
  read-modify-write race. Two concurrent issuances can read the same
  previous balance and each ignore the other's effect. Here the read and
  the write happen inside one store transaction, under the per-key lock,
  and the write is a compare-and-set on the counter's version.

SEE ALSO:
  - ledger.go: the critical section and retry loop around ResolveBalance
  - reconcile.go: detecting a counter that drifted from the history
*/
package stock

import (
	"context"
	"fmt"
)

// Resolution is the outcome of resolving a movement against its key.
type Resolution struct {
	Previous int64
	Balance  int64

	// Version is the counter version that was read. It is the expected
	// version for the compare-and-set that stores Balance.
	Version int64
}

// ResolveBalance computes the balance a movement produces for key.
// It must be called inside Store.WithTx, with key locked.
func ResolveBalance(ctx context.Context, tx Tx, key StockKey, received, issued int64) (Resolution, error) {
	rb, ok, err := tx.RunningBalance(ctx, key)
	if err != nil {
		return Resolution{}, fmt.Errorf("read running balance %s: %w", key, err)
	}

	var previous, version int64
	if ok {
		previous, version = rb.Balance, rb.Version
	}

	balance, ok := addDelta(previous, received-issued)
	if !ok {
		return Resolution{}, NewValidationError("quantity",
			fmt.Sprintf("would take the balance of %s (%d) out of range", key, previous))
	}

	return Resolution{
		Previous: previous,
		Balance:  balance,
		Version:  version,
	}, nil
}

// addDelta returns previous+delta, or false when the sum overflows int64.
func addDelta(previous, delta int64) (int64, bool) {
	sum := previous + delta
	if (delta > 0 && sum < previous) || (delta < 0 && sum > previous) {
		return 0, false
	}
	return sum, true
}
