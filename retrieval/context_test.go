package retrieval

import (
	"reflect"
	"testing"

	"github.com/maastricht-university/meeting-intelligence/transcript"
)

func TestContextWindow(t *testing.T) {
	e, st := newTestEngine(t, nil)
	saveMeeting(t, st, "m", nil, 10)

	cases := []struct {
		id, radius int
		want       []int
	}{
		{5, 2, []int{3, 4, 5, 6, 7}},
		{1, 2, []int{1, 2, 3}},
		{10, 2, []int{8, 9, 10}},
		{4, 0, []int{4}},
		{5, 50, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{11, 2, []int{}},
	}
	for _, tc := range cases {
		got, err := e.ContextWindow("m", tc.id, tc.radius)
		if err != nil {
			t.Fatalf("id=%d: %v", tc.id, err)
		}
		gotIDs := make([]int, len(got))
		for i, u := range got {
			gotIDs[i] = u.ID
		}
		if !reflect.DeepEqual(gotIDs, tc.want) {
			t.Errorf("id=%d radius=%d: got %v want %v", tc.id, tc.radius, gotIDs, tc.want)
		}
	}
}

func TestFormatForPrompt(t *testing.T) {
	if got := FormatForPrompt(nil, true); got != NoResultsText {
		t.Fatalf("empty: got %q", got)
	}

	res := []transcript.SearchResult{
		transcript.ScoredResult(transcript.Utterance{ID: 3, Speaker: "CEO", Start: 12, End: 15.5, Text: "We beat the forecast."}, 0.874),
		transcript.ResultFromUtterance(transcript.Utterance{ID: 4, Speaker: "CFO", Start: 15.5, End: 18, Text: "Margins held."}),
	}
	want := "1. CEO [12.0s-15.5s] (relevance: 0.87):\n   We beat the forecast.\n\n" +
		"2. CFO [15.5s-18.0s]:\n   Margins held."
	if got := FormatForPrompt(res, true); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	want = "1. CEO (relevance: 0.87):\n   We beat the forecast.\n\n2. CFO:\n   Margins held."
	if got := FormatForPrompt(res, false); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}
