package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// NowMillis returns the current time as unix epoch milliseconds.
func NowMillis() uint64 { return uint64(NowFunc().UnixMilli()) }
