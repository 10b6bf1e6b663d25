package process

// TerminationSignal is a step of the graceful shutdown sequence
type TerminationSignal string

const (
	SignalInterrupt TerminationSignal = "SIGINT"
	SignalTerminate TerminationSignal = "SIGTERM"
)
