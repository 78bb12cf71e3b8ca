package cache

import "runtime"

// Debug enables the fatal-on-drop-without-execute check: a transaction
// that is never executed is a programming error. Go has no Drop, so this
// is approximated with a finalizer; it is off by default since finalizer
// timing is nondeterministic, but is available for development builds
// that want the check.
var Debug = false

// Transaction is the handle returned by [Cache.Write]. It must be made
// flushable by calling [Transaction.Execute] or by chaining it into a
// dependency with [Transaction.Then].
type Transaction struct {
	cache    *Cache
	sector   uint64
	executed bool
}

func newTransaction(c *Cache, sector uint64) *Transaction {
	t := &Transaction{cache: c, sector: sector}
	if Debug {
		runtime.SetFinalizer(t, func(t *Transaction) {
			if !t.executed {
				panic("tfs: cache transaction dropped without Execute or Then")
			}
		})
	}
	return t
}

// Execute marks the transaction flushable. Idempotent.
func (t *Transaction) Execute() {
	t.executed = true
}

// Then records that t must hit disk before next's sector becomes clean,
// and marks t flushable. Returns next, so chains can be built fluently:
// t1.Then(t2).Then(t3).
func (t *Transaction) Then(next *Transaction) *Transaction {
	nb := next.cache.getOrCreateBlock(next.sector)
	nb.mu.Lock()
	nb.deps = append(nb.deps, t.sector)
	nb.mu.Unlock()
	t.executed = true
	return next
}
