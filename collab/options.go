package collab

import "time"

// Options holds configuration for the collaborator stores.
type Options struct {
	now   func() time.Time
	newID func() string
}

// Option configures a CommentStore or HistoryLog.
type Option func(*Options)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator sets the function that mints comment ids.
func WithIDGenerator(newID func() string) Option {
	return func(o *Options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func buildOptions(opts []Option) *Options {
	o := &Options{now: time.Now, newID: newUUID}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Timestamp converts t to fractional seconds since the Unix epoch, the
// resolution clients receive on the wire.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
