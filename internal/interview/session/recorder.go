package session

// Recorder receives telemetry about session activity.
type Recorder interface {
	TransitionCommitted(from, to, kind string)
	OperationRejected(op, reason string)
	MilestoneReached(stage string, pct int)
	AckDelivered(path string)
	SpeakFailed()
	SessionStarted()
	SessionEnded(reason string)
}

type nopRecorder struct{}

func (nopRecorder) TransitionCommitted(string, string, string) {}
func (nopRecorder) OperationRejected(string, string)           {}
func (nopRecorder) MilestoneReached(string, int)               {}
func (nopRecorder) AckDelivered(string)                        {}
func (nopRecorder) SpeakFailed()                               {}
func (nopRecorder) SessionStarted()                            {}
func (nopRecorder) SessionEnded(string)                        {}

// NopRecorder discards everything.
var NopRecorder Recorder = nopRecorder{}

const (
	AckPathImmediate = "immediate"
	AckPathRelay     = "relay"
)
