package lifecycle

import "sync"

// FingerprintLocks gates every mutating bundle transaction (create, update,
// repair, delete) on the fingerprint it targets. Unlike embed.FileLock,
// which guards a cross-process resource with a flock, bundle transactions
// only need to be mutually exclusive within this process, so a plain keyed
// in-process mutex map is enough.
type FingerprintLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFingerprintLocks creates an empty lock table.
func NewFingerprintLocks() *FingerprintLocks {
	return &FingerprintLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the exclusive lock for fingerprint is held and returns
// a function that releases it. Callers should defer the returned function
// immediately.
func (f *FingerprintLocks) Lock(fingerprint string) func() {
	f.mu.Lock()
	m, ok := f.locks[fingerprint]
	if !ok {
		m = &sync.Mutex{}
		f.locks[fingerprint] = m
	}
	f.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// TryLock attempts to acquire fingerprint's lock without blocking. It
// returns false if another transaction currently holds it, used by
// ifExists=error's short-circuit path (no point computing a wip directory
// just to discard it).
func (f *FingerprintLocks) TryLock(fingerprint string) (func(), bool) {
	f.mu.Lock()
	m, ok := f.locks[fingerprint]
	if !ok {
		m = &sync.Mutex{}
		f.locks[fingerprint] = m
	}
	f.mu.Unlock()

	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}
