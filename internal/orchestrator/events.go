package orchestrator

// EventSink is the client-facing event channel: transferProgress during
// long copy jobs, and undoStateChanged after every method completion
// (success or failure). It is the orchestrator's only outbound signal —
// nothing downstream of it participates in transaction correctness.
type EventSink interface {
	// TransferProgress reports percent in [0, 100] for a running copy job.
	TransferProgress(jobID string, percent float64)
	// UndoStateChanged reports the undo/redo stacks' current availability.
	UndoStateChanged(canUndo, canRedo bool)
}

// NoopEventSink discards every event, for callers that poll undo/redo
// state and job progress directly instead of subscribing to it.
type NoopEventSink struct{}

func (NoopEventSink) TransferProgress(string, float64) {}
func (NoopEventSink) UndoStateChanged(bool, bool)      {}
