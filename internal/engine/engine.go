package engine

import "time"

// Engine scores assignment candidates. It holds tunables and a clock only;
// all record data arrives per call, so concurrent invocations are independent.
type Engine struct {
	cfg Config
	now func() time.Time
}

// New creates an Engine with the given tunables.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// NewAt creates an Engine with a fixed clock, for tests.
func NewAt(cfg Config, now time.Time) *Engine {
	return &Engine{cfg: cfg, now: func() time.Time { return now }}
}

// Config returns the active tunables.
func (e *Engine) Config() Config { return e.cfg }
