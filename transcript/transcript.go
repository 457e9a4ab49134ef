// Package transcript holds the meeting data model: diarization segments,
// utterances, transcripts, speaker maps and search results, together with
// the segment merger and the speaker-label resolver that operate on them.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing meeting document (audio, transcript or index).
	ErrNotFound = errors.New("not found")
	// ErrMalformed marks a persisted document that cannot be decoded.
	ErrMalformed = errors.New("malformed document")
)

// FailedText replaces the text of a segment whose transcription failed.
const FailedText = "[TRANSCRIPTION FAILED]"

// DiarizationSegment is one speaker turn as reported by the diarizer.
type DiarizationSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"` // sec
	End     float64 `json:"end"`   // sec
}

func (s DiarizationSegment) Duration() float64 { return s.End - s.Start }

func (s *DiarizationSegment) UnmarshalJSON(b []byte) error {
	var raw struct {
		Speaker *string  `json:"speaker"`
		Start   *float64 `json:"start"`
		End     *float64 `json:"end"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Speaker == nil || raw.Start == nil || raw.End == nil {
		return fmt.Errorf("%w: diarization segment requires speaker, start and end", ErrMalformed)
	}
	if *raw.Start >= *raw.End {
		return fmt.Errorf("%w: diarization segment start %.3f is not before end %.3f", ErrMalformed, *raw.Start, *raw.End)
	}
	*s = DiarizationSegment{Speaker: *raw.Speaker, Start: *raw.Start, End: *raw.End}
	return nil
}

// Utterance is one transcribed, speaker-attributed unit of speech. ID is the
// 1-based position assigned at transcription time and never changes.
type Utterance struct {
	ID      int     `json:"id"`
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

func (u *Utterance) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID      *int     `json:"id"`
		Speaker *string  `json:"speaker"`
		Start   *float64 `json:"start"`
		End     *float64 `json:"end"`
		Text    *string  `json:"text"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.ID == nil || raw.Speaker == nil || raw.Start == nil || raw.End == nil || raw.Text == nil {
		return fmt.Errorf("%w: utterance requires id, speaker, start, end and text", ErrMalformed)
	}
	if *raw.ID < 1 {
		return fmt.Errorf("%w: utterance id %d is not positive", ErrMalformed, *raw.ID)
	}
	*u = Utterance{ID: *raw.ID, Speaker: *raw.Speaker, Start: *raw.Start, End: *raw.End, Text: *raw.Text}
	return nil
}

// Metadata summarizes a transcript and records which models produced it.
type Metadata struct {
	TotalUtterances  int     `json:"total_utterances"`
	TotalDuration    float64 `json:"total_duration"`
	ASRModel         string  `json:"asr_model,omitempty"`
	ASRLanguage      string  `json:"asr_language,omitempty"`
	DiarizationModel string  `json:"diarization_model,omitempty"`
}

// Transcript is the persisted representation of one processed meeting.
type Transcript struct {
	MeetingID  string      `json:"meeting_id"`
	Title      string      `json:"title"`
	Utterances []Utterance `json:"utterances"`
	Metadata   Metadata    `json:"metadata"`
}

// New assembles a transcript and derives its totals from utts.
func New(meetingID, title string, utts []Utterance, meta Metadata) *Transcript {
	if title == "" {
		title = "Meeting " + meetingID
	}
	if utts == nil {
		utts = []Utterance{}
	}
	meta.TotalUtterances = len(utts)
	meta.TotalDuration = 0
	for _, u := range utts {
		if u.End > meta.TotalDuration {
			meta.TotalDuration = u.End
		}
	}
	return &Transcript{MeetingID: meetingID, Title: title, Utterances: utts, Metadata: meta}
}

func (t *Transcript) UnmarshalJSON(b []byte) error {
	var raw struct {
		MeetingID  *string      `json:"meeting_id"`
		Title      *string      `json:"title"`
		Utterances *[]Utterance `json:"utterances"`
		Metadata   *Metadata    `json:"metadata"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.MeetingID == nil || raw.Title == nil || raw.Utterances == nil || raw.Metadata == nil {
		return fmt.Errorf("%w: transcript requires meeting_id, title, utterances and metadata", ErrMalformed)
	}
	*t = Transcript{MeetingID: *raw.MeetingID, Title: *raw.Title, Utterances: *raw.Utterances, Metadata: *raw.Metadata}
	return nil
}

// Speakers returns the distinct speaker values in order of first appearance.
func (t *Transcript) Speakers() []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range t.Utterances {
		if !seen[u.Speaker] {
			seen[u.Speaker] = true
			out = append(out, u.Speaker)
		}
	}
	return out
}

// SearchResult is an utterance returned by retrieval. Score is set only by
// semantic search.
type SearchResult struct {
	ID      int      `json:"id"`
	Speaker string   `json:"speaker"`
	Start   float64  `json:"start"`
	End     float64  `json:"end"`
	Text    string   `json:"text"`
	Score   *float64 `json:"score,omitempty"`
}

// ScoreOrZero is the ranking key: unscored results rank as 0.
func (r SearchResult) ScoreOrZero() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

func ResultFromUtterance(u Utterance) SearchResult {
	return SearchResult{ID: u.ID, Speaker: u.Speaker, Start: u.Start, End: u.End, Text: u.Text}
}

func ScoredResult(u Utterance, score float64) SearchResult {
	r := ResultFromUtterance(u)
	r.Score = &score
	return r
}
