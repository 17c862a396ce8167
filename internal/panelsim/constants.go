package panelsim

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultSettle        = 10 * time.Second
	PercentageMultiplier = 100
	pollInterval         = 50 * time.Millisecond
	scoreStep            = 0.5
)
