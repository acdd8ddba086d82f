package tcp

import (
	"github.com/sirupsen/logrus"
)

// ResetPolicy selects what happens to segments that match no expected
// (state, event) pair.
type ResetPolicy int

const (
	// DropSilently discards the segment without answering.
	DropSilently ResetPolicy = iota
	// SendReset answers with a RST as RFC 793 describes.
	SendReset
)

func (p ResetPolicy) String() string {
	switch p {
	case DropSilently:
		return "drop"
	case SendReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Sink receives payload accepted on an established connection. Deliver runs
// on the dispatcher goroutine and must not block.
type Sink interface {
	Deliver(q Quad, data []byte)
}

type SinkFunc func(q Quad, data []byte)

func (f SinkFunc) Deliver(q Quad, data []byte) {
	f(q, data)
}

type options struct {
	iss    ISNGenerator
	reset  ResetPolicy
	window uint16
	sink   Sink
	debug  bool
	log    *logrus.Logger
}

type Option func(*options)

func WithISS(gen ISNGenerator) Option {
	return func(o *options) { o.iss = gen }
}

func WithResetPolicy(p ResetPolicy) Option {
	return func(o *options) { o.reset = p }
}

// WithWindow sets the window advertised in every outbound segment.
func WithWindow(wnd uint16) Option {
	return func(o *options) { o.window = wnd }
}

func WithSink(s Sink) Option {
	return func(o *options) { o.sink = s }
}

func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

// WithLogger routes diagnostics to l instead of the standard logrus logger.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.log = l }
}

func defaultOptions() options {
	return options{
		reset:  DropSilently,
		window: defaultWindow,
		log:    logrus.StandardLogger(),
	}
}
