/*
Package lock provides per-key mutual exclusion.

PURPOSE:
  The ledger must read a stock key's running balance and append the next
  entry as one unit. Two appends to the same key must never interleave;
  appends to different keys must not wait for each other.

IMPLEMENTATIONS:
  Local: in-process, one slot per key, released slots are garbage-collected
  Redis: distributed via bsm/redislock, for several server processes
         sharing one database

USAGE:
  unlock, err := locker.Lock(ctx, key)
  if err != nil {
      return err
  }
  defer unlock()
*/
package lock

import (
	"context"
	"errors"
)

// ErrNotObtained is returned when the lock could not be acquired within
// the locker's wait budget.
var ErrNotObtained = errors.New("lock not obtained")

// Locker serializes work per key.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func
	// releases the key and is safe to call once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
