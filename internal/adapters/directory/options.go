package directory

import "github.com/okian/talentboard/pkg/logger"

// Option configures a Directory.
type Option func(*Directory)

// WithMaxLimit caps the page size a search may ask for.
func WithMaxLimit(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.maxLimit = n
		}
	}
}

// WithLogger sets the directory logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}
