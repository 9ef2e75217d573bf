package clock

import "go.uber.org/fx"

var Module = fx.Module("clock",
	fx.Provide(NewSystem),
)

// NewSystem provides the wall clock used outside tests.
func NewSystem() Clock { return SystemClock{} }
