package hub

import (
	"time"

	"github.com/rs/zerolog"
)

// Options holds configuration for a Hub.
type Options struct {
	logger     zerolog.Logger
	sendBuffer int
	comments   CommentSink
	history    HistoryRecorder
	now        func() time.Time
}

// Option configures a Hub.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		logger:     zerolog.Nop(),
		sendBuffer: 256,
		now:        time.Now,
	}
}

// WithLogger sets the logger for session and broadcast events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// WithSendBuffer sets how many outbound frames a session may queue before
// further frames to it are dropped.
func WithSendBuffer(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.sendBuffer = n
		}
	}
}

// WithComments sets the store that comment_add delegates to.
func WithComments(c CommentSink) Option {
	return func(o *Options) {
		o.comments = c
	}
}

// WithHistory sets the log every successful edit is recorded in.
func WithHistory(h HistoryRecorder) Option {
	return func(o *Options) {
		o.history = h
	}
}

// WithClock sets the time source for presence timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.now = now
		}
	}
}
