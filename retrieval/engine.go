// Package retrieval finds the utterances of a processed meeting that answer
// a question, either by embedding similarity or by keyword overlap, and
// assembles them into prompt context.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

// ErrNoIndex is returned for semantic queries when the engine was built
// without a vector index.
var ErrNoIndex = errors.New("retrieval: semantic search needs a vector index")

// Searcher is the query side of a vector index.
type Searcher interface {
	Query(ctx context.Context, meetingID, text string, topK int, speaker string) ([]transcript.SearchResult, error)
}

type Engine struct {
	store *store.Store
	index Searcher
	cfg   cfg.Retrieval
	log   *logrus.Entry
}

// NewEngine returns an Engine over st. idx may be nil, in which case only
// keyword queries succeed.
func NewEngine(st *store.Store, idx Searcher, c cfg.Retrieval) *Engine {
	return &Engine{store: st, index: idx, cfg: c, log: logrus.WithField("component", "retrieval")}
}

type Query struct {
	MeetingID string
	Text      string
	// Roles limits results to these speakers. Semantic queries accept roles
	// or raw labels; keyword queries match the stored speaker exactly.
	Roles    []string
	Limit    int
	Semantic bool
}

// Search returns results best-first. A meeting without a transcript (or,
// for semantic queries, without an index) yields an error matching
// transcript.ErrNotFound; no matches yield an empty slice.
func (e *Engine) Search(ctx context.Context, q Query) ([]transcript.SearchResult, error) {
	if q.Limit <= 0 {
		q.Limit = e.cfg.TopK
	}
	fields := logrus.Fields{"meeting_id": q.MeetingID, "semantic": q.Semantic, "roles": q.Roles, "limit": q.Limit}
	var (
		res []transcript.SearchResult
		err error
	)
	if q.Semantic {
		res, err = e.semantic(ctx, q)
	} else {
		res, err = e.keyword(q)
	}
	if err != nil {
		e.log.WithFields(fields).WithError(err).Warn("search failed")
		return nil, err
	}
	e.log.WithFields(fields).Debugf("%d results", len(res))
	return res, nil
}

func (e *Engine) semantic(ctx context.Context, q Query) ([]transcript.SearchResult, error) {
	if e.index == nil {
		return nil, ErrNoIndex
	}
	if len(q.Roles) == 0 {
		res, err := e.index.Query(ctx, q.MeetingID, q.Text, q.Limit, "")
		if err != nil {
			return nil, err
		}
		return sortAndTruncate(res, q.Limit), nil
	}

	speakers, _, err := e.store.LoadSpeakerMap(q.MeetingID)
	if err != nil {
		return nil, err
	}
	// one slot per role so the union does not depend on completion order
	slots := make([][]transcript.SearchResult, len(q.Roles))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range q.Roles {
		i, label := i, speakers.ResolveRole(role)
		g.Go(func() error {
			res, err := e.index.Query(gctx, q.MeetingID, q.Text, q.Limit, label)
			slots[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var union []transcript.SearchResult
	for _, res := range slots {
		union = append(union, res...)
	}
	return sortAndTruncate(union, q.Limit), nil
}

func (e *Engine) keyword(q Query) ([]transcript.SearchResult, error) {
	t, err := e.store.Load(q.MeetingID)
	if err != nil {
		return nil, err
	}
	queryTokens := tokenSet(q.Text)
	roles := make(map[string]bool, len(q.Roles))
	for _, r := range q.Roles {
		roles[r] = true
	}

	type hit struct {
		u       transcript.Utterance
		overlap int
	}
	var hits []hit
	for _, u := range t.Utterances {
		if len(roles) > 0 && !roles[u.Speaker] {
			continue
		}
		n := 0
		for tok := range tokenSet(u.Text) {
			if queryTokens[tok] {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{u: u, overlap: n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].overlap > hits[j].overlap })
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]transcript.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = transcript.ResultFromUtterance(h.u)
	}
	return out, nil
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func sortAndTruncate(res []transcript.SearchResult, limit int) []transcript.SearchResult {
	if res == nil {
		res = []transcript.SearchResult{}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].ScoreOrZero() > res[j].ScoreOrZero() })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}
