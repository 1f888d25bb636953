package auth

import "time"

// DefaultSecret signs tokens when no secret is configured.
const DefaultSecret = "supersecretkey"

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 30 * time.Minute

// Options holds configuration for a Service.
type Options struct {
	secret []byte
	ttl    time.Duration
	users  []User
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		secret: []byte(DefaultSecret),
		ttl:    DefaultTokenTTL,
		users:  DemoUsers,
		now:    time.Now,
	}
}

// WithSecret sets the HMAC key tokens are signed with.
func WithSecret(secret string) Option {
	return func(o *Options) {
		if secret != "" {
			o.secret = []byte(secret)
		}
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithUsers replaces the demo user table.
func WithUsers(users ...User) Option {
	return func(o *Options) {
		o.users = users
	}
}

// WithClock sets the time source for issuing and checking expiry.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.now = now
		}
	}
}
