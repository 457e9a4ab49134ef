package orchestrator

import (
	"fmt"
)

// State is how far a meeting has progressed through the pipeline. Only
// Processed is persisted, as the existence of the transcript file.
type State int

const (
	Unprocessed State = iota
	Diarized
	Transcribed
	Labeled
	Embedded
	Processed
)

func (s State) String() string {
	switch s {
	case Unprocessed:
		return "unprocessed"
	case Diarized:
		return "diarized"
	case Transcribed:
		return "transcribed"
	case Labeled:
		return "labeled"
	case Embedded:
		return "embedded"
	case Processed:
		return "processed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	StatusSuccess          = "success"
	StatusAlreadyProcessed = "already_processed"
	StatusError            = "error"
)

type Options struct {
	Title string
	// ApplyLabels rewrites speakers with the meeting's speaker map, if any.
	ApplyLabels bool
	// CreateVectors embeds the utterances into the vector index.
	CreateVectors bool
	// Force reprocesses a meeting that already has a transcript.
	Force bool
}

// Result summarises one Process call. Error is set only for StatusError,
// in which case the counts are zero.
type Result struct {
	MeetingID  string  `json:"meeting_id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	Utterances int     `json:"utterances"`
	Speakers   int     `json:"speakers"`
	Duration   float64 `json:"duration"`
	RunID      string  `json:"run_id,omitempty"`
}

// StageError reports the stage that was running when the pipeline stopped.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }
