package retrieval

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-intelligence/transcript"
)

// NoResultsText is what FormatForPrompt returns for no results. Callers
// compare against it rather than treating it as meeting content.
const NoResultsText = "No relevant information found in the meeting."

// ContextWindow returns the utterance with id utteranceID together with up
// to radius neighbours on each side, in transcript order. An unknown id
// yields an empty slice.
func (e *Engine) ContextWindow(meetingID string, utteranceID, radius int) ([]transcript.Utterance, error) {
	t, err := e.store.Load(meetingID)
	if err != nil {
		return nil, err
	}
	if radius < 0 {
		radius = 0
	}
	for i, u := range t.Utterances {
		if u.ID != utteranceID {
			continue
		}
		lo := max(0, i-radius)
		hi := min(len(t.Utterances), i+radius+1)
		out := make([]transcript.Utterance, hi-lo)
		copy(out, t.Utterances[lo:hi])
		return out, nil
	}
	e.log.WithFields(logrus.Fields{"meeting_id": meetingID, "utterance_id": utteranceID}).Warn("utterance not found")
	return []transcript.Utterance{}, nil
}

// FormatForPrompt renders results as a numbered list for an LLM prompt:
//
//	1. CEO [12.0s-15.5s] (relevance: 0.87):
//	   We beat the forecast.
func FormatForPrompt(results []transcript.SearchResult, includeTimestamps bool) string {
	if len(results) == 0 {
		return NoResultsText
	}
	parts := make([]string, len(results))
	for i, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. %s", i+1, r.Speaker)
		if includeTimestamps {
			fmt.Fprintf(&b, " [%.1fs-%.1fs]", r.Start, r.End)
		}
		if r.Score != nil {
			fmt.Fprintf(&b, " (relevance: %.2f)", *r.Score)
		}
		fmt.Fprintf(&b, ":\n   %s", r.Text)
		parts[i] = b.String()
	}
	return strings.Join(parts, "\n\n")
}
