package identity

import (
	"time"

	"github.com/dmitrijs2005/digitalmira/internal/cryptox"
	"github.com/dmitrijs2005/digitalmira/internal/logging"
)

// Option configures a Store.
type Option func(*Store)

func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithHasher(h cryptox.Hasher) Option {
	return func(s *Store) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithSecret sets the key session records are signed with. Without it the
// store uses a random key kept in the durable scope, shared by every process
// that opens the same database.
func WithSecret(secret []byte) Option {
	return func(s *Store) {
		if len(secret) > 0 {
			s.secret = append([]byte(nil), secret...)
		}
	}
}

// WithMinPasswordLength sets the minimum password length accepted by
// Register. Values below 1 mean "non-empty".
func WithMinPasswordLength(n int) Option {
	return func(s *Store) {
		s.minPasswordLength = n
	}
}
