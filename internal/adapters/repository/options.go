package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithSeed sets the seed used to derive node priorities. Stores built with
// the same seed and the same updates have the same shape.
func WithSeed(seed uint64) Option {
	return func(s *TreapStore) { s.seed = seed }
}
