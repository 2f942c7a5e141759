package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments (or a test
// run) can share one Redis or Badger store without colliding.
//
// Example usage:
//
//	testnet := NewScopedKeyer(NewDefaultKeyer(), "testnet:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// TxKey generates a prefixed key for transaction sizes.
func (k *ScopedKeyer) TxKey(height int64) string {
	return k.prefix + k.inner.TxKey(height)
}

// LayoutKey generates a prefixed key for packings.
func (k *ScopedKeyer) LayoutKey(txHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(txHash, opts)
}

// MarkupKey generates a prefixed key for emitted markup.
func (k *ScopedKeyer) MarkupKey(layoutHash string, opts MarkupKeyOpts) string {
	return k.prefix + k.inner.MarkupKey(layoutHash, opts)
}
