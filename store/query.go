package store

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/maastricht-university/meeting-intelligence/transcript"
)

// UtterancesBySpeaker returns the utterances whose stored speaker equals
// speaker exactly (raw label or applied role, whichever is stored).
func (s *Store) UtterancesBySpeaker(meetingID, speaker string) ([]transcript.Utterance, error) {
	return s.filter(meetingID, func(u transcript.Utterance) bool { return u.Speaker == speaker })
}

// UtterancesInRange returns the utterances lying entirely within [start, end].
func (s *Store) UtterancesInRange(meetingID string, start, end float64) ([]transcript.Utterance, error) {
	return s.filter(meetingID, func(u transcript.Utterance) bool { return u.Start >= start && u.End <= end })
}

// UtterancesContaining returns the utterances whose text contains keyword.
func (s *Store) UtterancesContaining(meetingID, keyword string, caseSensitive bool) ([]transcript.Utterance, error) {
	if !caseSensitive {
		keyword = strings.ToLower(keyword)
	}
	return s.filter(meetingID, func(u transcript.Utterance) bool {
		text := u.Text
		if !caseSensitive {
			text = strings.ToLower(text)
		}
		return strings.Contains(text, keyword)
	})
}

func (s *Store) filter(meetingID string, keep func(transcript.Utterance) bool) ([]transcript.Utterance, error) {
	t, err := s.Load(meetingID)
	if err != nil {
		return nil, err
	}
	out := []transcript.Utterance{}
	for _, u := range t.Utterances {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

// ExportText writes the transcript of meetingID as plain text.
func (s *Store) ExportText(meetingID string, w io.Writer, includeTimestamps bool) error {
	t, err := s.Load(meetingID)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Transcript: %s\n", t.Title)
	fmt.Fprintf(bw, "Duration: %.1fs\n", t.Metadata.TotalDuration)
	fmt.Fprintf(bw, "%s\n\n", strings.Repeat("=", 60))
	for _, u := range t.Utterances {
		if includeTimestamps {
			fmt.Fprintf(bw, "%s [%.1fs - %.1fs]:\n", u.Speaker, u.Start, u.End)
		} else {
			fmt.Fprintf(bw, "%s:\n", u.Speaker)
		}
		fmt.Fprintf(bw, "%s\n\n", u.Text)
	}
	return bw.Flush()
}
