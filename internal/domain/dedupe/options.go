package dedupe

// Option applies a configuration option to the deduper.
type Option func(*ringDeduper)

// WithMaxSize sets how many ids are remembered.
// If maxSize > 0 the oldest id is forgotten once the limit is reached.
// If maxSize <= 0 nothing is ever forgotten.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}
