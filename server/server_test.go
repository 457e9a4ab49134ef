package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/orchestrator"
	"github.com/maastricht-university/meeting-intelligence/qa"
	"github.com/maastricht-university/meeting-intelligence/retrieval"
	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

type stubProc struct {
	res  orchestrator.Result
	opts orchestrator.Options
}

func (p *stubProc) Process(_ context.Context, id string, opts orchestrator.Options) orchestrator.Result {
	p.opts = opts
	r := p.res
	r.MeetingID = id
	return r
}

type stubAsk struct{ reply qa.Reply }

func (a *stubAsk) Ask(context.Context, string, string, string) (qa.Reply, error) {
	return a.reply, nil
}

type fixture struct {
	srv  *Server
	st   *store.Store
	proc *stubProc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New(cfg.Paths{Recordings: "rec", Processed: "proc", SpeakerMaps: "maps"}.Under(t.TempDir()))
	utts := []transcript.Utterance{
		{ID: 1, Speaker: "SPEAKER_0", Start: 0, End: 4, Text: "Welcome to the budget review"},
		{ID: 2, Speaker: "SPEAKER_1", Start: 4, End: 9, Text: "The budget is approved"},
		{ID: 3, Speaker: "SPEAKER_0", Start: 9, End: 12, Text: "Great news"},
	}
	if err := st.Save("q3", transcript.New("q3", "Budget Review", utts, transcript.Metadata{})); err != nil {
		t.Fatal(err)
	}
	r := cfg.Retrieval{TopK: 10, ContextRadius: 1, Semantic: false}
	proc := &stubProc{res: orchestrator.Result{Status: orchestrator.StatusSuccess, Utterances: 3}}
	ask := &stubAsk{reply: qa.Reply{Status: qa.StatusAnswered, Answer: "It was approved."}}
	return &fixture{srv: New(st, proc, retrieval.NewEngine(st, nil, r), ask, r), st: st, proc: proc}
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/meetings", "")
	if code != http.StatusOK || !strings.Contains(string(body), `"meeting_id":"q3"`) {
		t.Fatalf("%d %s", code, body)
	}

	code, body = f.do(t, http.MethodGet, "/meetings/q3", "")
	if code != http.StatusOK || !strings.Contains(string(body), `"total_words":11`) {
		t.Fatalf("%d %s", code, body)
	}

	code, _ = f.do(t, http.MethodGet, "/meetings/missing", "")
	if code != http.StatusNotFound {
		t.Fatalf("missing meeting: %d", code)
	}
	code, _ = f.do(t, http.MethodGet, "/meetings/bad.id", "")
	if code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", code)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/meetings/q3/search?q=budget+approved", "")
	if code != http.StatusOK {
		t.Fatalf("%d %s", code, body)
	}
	var out struct {
		Results []transcript.SearchResult `json:"results"`
		Context string                    `json:"context"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 || out.Results[0].ID != 2 {
		t.Fatalf("unexpected results %+v", out.Results)
	}
	if !strings.HasPrefix(out.Context, "1. SPEAKER_1 [4.0s-9.0s]:") {
		t.Fatalf("unexpected context %q", out.Context)
	}

	code, body = f.do(t, http.MethodGet, "/meetings/q3/search?q=budget&role=SPEAKER_0", "")
	if code != http.StatusOK || strings.Contains(string(body), "SPEAKER_1") {
		t.Fatalf("%d %s", code, body)
	}

	code, _ = f.do(t, http.MethodGet, "/meetings/q3/search", "")
	if code != http.StatusBadRequest {
		t.Fatalf("missing q: %d", code)
	}
	code, _ = f.do(t, http.MethodGet, "/meetings/q3/search?q=budget&semantic=true", "")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("semantic without index: %d", code)
	}
}

func TestContextWindowRoute(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/meetings/q3/utterances/1/context", "")
	if code != http.StatusOK {
		t.Fatalf("%d %s", code, body)
	}
	var out struct {
		Utterances []transcript.Utterance `json:"utterances"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Utterances) != 2 || out.Utterances[1].ID != 2 {
		t.Fatalf("unexpected window %+v", out.Utterances)
	}

	code, _ = f.do(t, http.MethodGet, "/meetings/q3/utterances/zero/context", "")
	if code != http.StatusBadRequest {
		t.Fatalf("bad uid: %d", code)
	}
}

func TestProcessRoute(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/meetings/q4/process", `{"title":"Q4","create_vectors":false}`)
	if code != http.StatusOK || !strings.Contains(string(body), `"status":"success"`) {
		t.Fatalf("%d %s", code, body)
	}
	if f.proc.opts.Title != "Q4" || f.proc.opts.CreateVectors || !f.proc.opts.ApplyLabels || f.proc.opts.Force {
		t.Fatalf("unexpected options %+v", f.proc.opts)
	}

	f.proc.res = orchestrator.Result{Status: orchestrator.StatusError, Error: "diarized stage: boom"}
	code, body = f.do(t, http.MethodPost, "/meetings/q4/process", "")
	if code != http.StatusUnprocessableEntity || !strings.Contains(string(body), "boom") {
		t.Fatalf("%d %s", code, body)
	}
}

func TestAskRoute(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/meetings/q3/ask", `{"question":"Was the budget approved?"}`)
	if code != http.StatusOK || !strings.Contains(string(body), "It was approved.") {
		t.Fatalf("%d %s", code, body)
	}
	code, _ = f.do(t, http.MethodPost, "/meetings/q3/ask", `{"question":"  "}`)
	if code != http.StatusBadRequest {
		t.Fatalf("blank question: %d", code)
	}
}

func TestSpeakersRoute(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/meetings/q3/speakers", "")
	if code != http.StatusOK || strings.TrimSpace(string(body)) != "{}" {
		t.Fatalf("%d %s", code, body)
	}

	code, body = f.do(t, http.MethodPut, "/meetings/q3/speakers?apply=true", `{"SPEAKER_0":"CEO"}`)
	if code != http.StatusOK {
		t.Fatalf("%d %s", code, body)
	}
	got, err := f.st.UtterancesBySpeaker("q3", "CEO")
	if err != nil || len(got) != 2 {
		t.Fatalf("relabel not applied: %v %v", got, err)
	}

	code, _ = f.do(t, http.MethodPut, "/meetings/q3/speakers", `{"SPEAKER_0":1}`)
	if code != http.StatusBadRequest {
		t.Fatalf("bad map: %d", code)
	}
}

func TestExportRoute(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/meetings/q3/transcript.txt", "")
	if code != http.StatusOK || !strings.Contains(string(body), "Transcript: Budget Review") {
		t.Fatalf("%d %s", code, body)
	}
}

func TestUtterancesRoute(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?speaker=SPEAKER_0", 2},
		{"?contains=BUDGET", 2},
		{"?contains=BUDGET&case_sensitive=true", 0},
		{"?from=3&to=10", 1},
		{"?from=9", 1},
	}
	for _, tc := range cases {
		code, body := f.do(t, http.MethodGet, "/meetings/q3/utterances"+tc.query, "")
		if code != http.StatusOK {
			t.Fatalf("%s: %d %s", tc.query, code, body)
		}
		var out struct {
			Utterances []transcript.Utterance `json:"utterances"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatal(err)
		}
		if len(out.Utterances) != tc.want {
			t.Errorf("%s: got %d utterances, want %d", tc.query, len(out.Utterances), tc.want)
		}
	}
}
