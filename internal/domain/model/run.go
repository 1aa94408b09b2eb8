package model

// RunStatus is a point-in-time snapshot of the batch runner, for display.
// Position only moves forward and never exceeds QueueLength.
type RunStatus struct {
	State        RunState
	QueueLength  int
	Position     int
	SuccessCount int
	FailureCount int
	CurrentOwner string // EOA address of the in-flight item, empty when idle.
	CycleCount   int    // Completed rotation cycles; zero outside cycling mode.
}

// Remaining returns the number of unprocessed queue entries.
func (s RunStatus) Remaining() int {
	return s.QueueLength - s.Position
}

// Terminal reports whether the whole queue has been consumed.
func (s RunStatus) Terminal() bool {
	return s.QueueLength > 0 && s.Position >= s.QueueLength
}
