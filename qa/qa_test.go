package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/retrieval"
	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

type stubSearch struct {
	res  []transcript.SearchResult
	err  error
	last retrieval.Query
}

func (s *stubSearch) Search(_ context.Context, q retrieval.Query) ([]transcript.SearchResult, error) {
	s.last = q
	return s.res, s.err
}

type stubGen struct {
	answer  string
	err     error
	speaker string
}

func (g *stubGen) Answer(_ context.Context, _, _, speaker string) (string, error) {
	g.speaker = speaker
	return g.answer, g.err
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(cfg.Paths{Recordings: "rec", Processed: "proc", SpeakerMaps: "maps"}.Under(t.TempDir()))
	tr := transcript.New("q3", "", []transcript.Utterance{{ID: 1, Speaker: "CFO", Start: 0, End: 3, Text: "Revenue grew 12%."}}, transcript.Metadata{})
	if err := st.Save("q3", tr); err != nil {
		t.Fatal(err)
	}
	return st
}

var hit = []transcript.SearchResult{transcript.ScoredResult(transcript.Utterance{ID: 1, Speaker: "CFO", Start: 0, End: 3, Text: "Revenue grew 12%."}, 0.91)}

func TestAskAnswered(t *testing.T) {
	s := &stubSearch{res: hit}
	g := &stubGen{answer: "Revenue grew 12%, per the CFO."}
	a := NewAssistant(newStore(t), s, g, 5, true)

	r, err := a.Ask(context.Background(), "q3", "How did revenue do?", "CFO")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusAnswered || r.Fallback || r.Answer != g.answer || len(r.Results) != 1 {
		t.Fatalf("unexpected reply %+v", r)
	}
	if len(s.last.Roles) != 1 || s.last.Roles[0] != "CFO" || !s.last.Semantic || s.last.Limit != 5 {
		t.Fatalf("unexpected query %+v", s.last)
	}
	if g.speaker != "CFO" {
		t.Fatalf("speaker focus not passed: %q", g.speaker)
	}
}

func TestAskFallsBackOnGenerationFailure(t *testing.T) {
	a := NewAssistant(newStore(t), &stubSearch{res: hit}, &stubGen{err: errors.New("chat completion: 500")}, 5, true)
	r, err := a.Ask(context.Background(), "q3", "revenue?", "")
	if err != nil {
		t.Fatalf("generation failure must not surface: %v", err)
	}
	want := FallbackPrefix + "1. CFO [0.0s-3.0s] (relevance: 0.91):\n   Revenue grew 12%."
	if r.Status != StatusAnswered || !r.Fallback || r.Answer != want {
		t.Fatalf("unexpected reply %+v", r)
	}

	noGen := NewAssistant(newStore(t), &stubSearch{res: hit}, nil, 5, true)
	r, _ = noGen.Ask(context.Background(), "q3", "revenue?", "")
	if !r.Fallback || !strings.HasPrefix(r.Answer, FallbackPrefix) {
		t.Fatalf("unexpected reply %+v", r)
	}
}

func TestAskNoMeetingAndNoResults(t *testing.T) {
	s := &stubSearch{}
	a := NewAssistant(newStore(t), s, &stubGen{answer: "x"}, 5, false)

	r, err := a.Ask(context.Background(), "unknown", "anything", "")
	if err != nil || r.Status != StatusNoMeeting {
		t.Fatalf("got %+v %v", r, err)
	}
	r, err = a.Ask(context.Background(), "q3", "anything", "")
	if err != nil || r.Status != StatusNoResults || r.Answer != "" {
		t.Fatalf("got %+v %v", r, err)
	}

	s.err = fmt.Errorf("meeting q3: %w", transcript.ErrNotFound)
	r, err = a.Ask(context.Background(), "q3", "anything", "")
	if err != nil || r.Status != StatusNoResults {
		t.Fatalf("missing index: got %+v %v", r, err)
	}

	s.err = errors.New("redis: connection refused")
	if _, err := a.Ask(context.Background(), "q3", "anything", ""); err == nil {
		t.Fatal("retrieval errors must surface")
	}
}
