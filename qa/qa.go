// Package qa answers questions about a processed meeting by retrieving
// relevant utterances and handing them to an answer model. Generation
// failures fall back to the retrieved excerpts.
package qa

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-intelligence/retrieval"
	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

type Generator interface {
	Answer(ctx context.Context, question, excerpts, speaker string) (string, error)
}

type Searcher interface {
	Search(ctx context.Context, q retrieval.Query) ([]transcript.SearchResult, error)
}

const (
	StatusNoMeeting = "no_meeting"
	StatusNoResults = "no_results"
	StatusAnswered  = "answered"
)

// FallbackPrefix introduces the raw excerpts returned when no answer could
// be generated.
const FallbackPrefix = "Here's what I found in the meeting:\n\n"

type Reply struct {
	Status   string                    `json:"status"`
	Answer   string                    `json:"answer,omitempty"`
	Results  []transcript.SearchResult `json:"results,omitempty"`
	Fallback bool                      `json:"fallback,omitempty"`
}

type Assistant struct {
	store    *store.Store
	search   Searcher
	gen      Generator
	limit    int
	semantic bool
	log      *logrus.Entry
}

// NewAssistant returns an Assistant. gen may be nil, in which case every
// answer is the formatted excerpts.
func NewAssistant(st *store.Store, s Searcher, gen Generator, limit int, semantic bool) *Assistant {
	return &Assistant{store: st, search: s, gen: gen, limit: limit, semantic: semantic, log: logrus.WithField("component", "qa")}
}

// Ask answers question about meetingID, optionally restricted to what role
// said. Only retrieval errors other than a missing meeting are returned.
func (a *Assistant) Ask(ctx context.Context, meetingID, question, role string) (Reply, error) {
	log := a.log.WithFields(logrus.Fields{"meeting_id": meetingID, "role": role})
	if !a.store.IsProcessed(meetingID) {
		log.Info("meeting not processed")
		return Reply{Status: StatusNoMeeting}, nil
	}

	q := retrieval.Query{MeetingID: meetingID, Text: question, Limit: a.limit, Semantic: a.semantic}
	if role != "" {
		q.Roles = []string{role}
	}
	results, err := a.search.Search(ctx, q)
	if errors.Is(err, transcript.ErrNotFound) {
		log.WithError(err).Warn("nothing to search")
		return Reply{Status: StatusNoResults}, nil
	}
	if err != nil {
		return Reply{}, err
	}
	if len(results) == 0 {
		return Reply{Status: StatusNoResults}, nil
	}

	excerpts := retrieval.FormatForPrompt(results, true)
	reply := Reply{Status: StatusAnswered, Results: results}
	if a.gen != nil {
		answer, err := a.gen.Answer(ctx, question, excerpts, role)
		if err == nil && strings.TrimSpace(answer) != "" {
			reply.Answer = answer
			return reply, nil
		}
		log.WithError(err).Warn("answer generation failed, returning excerpts")
	}
	reply.Answer = FallbackPrefix + excerpts
	reply.Fallback = true
	return reply, nil
}
