package issuance

import (
	"time"

	"github.com/tendermint/tendermint/libs/log"
)

// DefaultLogger is used for all block info that have not
// set anything themselves
var DefaultLogger = log.NewNopLogger()

// BlockInfo carries the context of where an operation is being executed:
// the current period (the external monotonic counter, typically a block
// height, that drives all rate computations), the wall clock time it was
// observed at and the logger to report on.
//
// A BlockInfo is constructed once per transition by the host environment
// and passed by value into every operation.
type BlockInfo struct {
	height int64
	time   time.Time
	logger log.Logger
}

// NewBlockInfo creates a BlockInfo for the current execution context.
func NewBlockInfo(height int64, blockTime time.Time, logger log.Logger) BlockInfo {
	if logger == nil {
		logger = DefaultLogger
	}
	return BlockInfo{
		height: height,
		time:   blockTime,
		logger: logger,
	}
}

// Height returns the current period counter.
func (b BlockInfo) Height() int64 {
	return b.height
}

// BlockTime returns the time the current period was observed at.
func (b BlockInfo) BlockTime() time.Time {
	return b.time
}

// Logger returns the logger set in this context.
func (b BlockInfo) Logger() log.Logger {
	return b.logger
}

// WithLogKV returns a copy of this BlockInfo with a new logger
// that adds the given key-value pairs to all logged lines.
func (b BlockInfo) WithLogKV(keyvals ...interface{}) BlockInfo {
	b.logger = b.logger.With(keyvals...)
	return b
}

// Freezer reports an externally owned pause condition. While frozen, no
// periods accrue for the observing component. This engine only reads the
// flag, it never flips it.
type Freezer interface {
	Frozen() bool
}
