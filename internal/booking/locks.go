package booking

import "sync"

// stripeCount is the number of mutexes the per-user lock table is
// hashed over.  Two users sharing a stripe serialize against each
// other, which costs a little parallelism but never correctness.
const stripeCount = 64

// userLocks serializes the overlap-check-then-commit span per user.
// Without it two concurrent requests for the same user could both pass
// the overlap check before either commits.  The zero value is ready to
// use.
type userLocks struct {
	stripes [stripeCount]sync.Mutex
}

// forUser returns the mutex guarding the given user.
func (l *userLocks) forUser(userID uint64) *sync.Mutex {
	return &l.stripes[userID%stripeCount]
}
