package application

import (
	"time"

	"go.uber.org/zap"

	"github.com/ahrav/go-funcreg/internal/ports"
)

var _ ports.Server = (*Host)(nil)

// Host is the default ports.Server handed to factories. Hosts embedding the
// core may supply their own implementation instead.
type Host struct {
	logger *zap.Logger
	clock  func() time.Time
}

// NewHost creates a Host with the given logger. A nil logger is replaced by
// a no-op logger. The clock defaults to time.Now.
func NewHost(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{logger: logger, clock: time.Now}
}

// WithClock returns a copy of h reading time from clock.
func (h *Host) WithClock(clock func() time.Time) *Host {
	if clock == nil {
		clock = time.Now
	}
	return &Host{logger: h.logger, clock: clock}
}

// Logger returns the host logger.
func (h *Host) Logger() *zap.Logger { return h.logger }

// Now returns the host's current time.
func (h *Host) Now() time.Time { return h.clock() }
