// Package server exposes meeting processing, search and question answering
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/orchestrator"
	"github.com/maastricht-university/meeting-intelligence/qa"
	"github.com/maastricht-university/meeting-intelligence/retrieval"
	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

type Processor interface {
	Process(ctx context.Context, meetingID string, opts orchestrator.Options) orchestrator.Result
}

type Searcher interface {
	Search(ctx context.Context, q retrieval.Query) ([]transcript.SearchResult, error)
	ContextWindow(meetingID string, utteranceID, radius int) ([]transcript.Utterance, error)
}

type Asker interface {
	Ask(ctx context.Context, meetingID, question, role string) (qa.Reply, error)
}

type Server struct {
	app    *fiber.App
	store  *store.Store
	proc   Processor
	search Searcher
	ask    Asker
	cfg    cfg.Retrieval
	log    *logrus.Entry
}

func New(st *store.Store, p Processor, s Searcher, a Asker, r cfg.Retrieval) *Server {
	srv := &Server{store: st, proc: p, search: s, ask: a, cfg: r, log: logrus.WithField("component", "server")}
	srv.app = fiber.New(fiber.Config{
		AppName:               "meeting-intelligence",
		DisableStartupMessage: true,
		ErrorHandler:          srv.handleError,
	})
	srv.routes()
	return srv
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Infof("listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/meetings", s.listMeetings)

	m := s.app.Group("/meetings/:id", s.checkID)
	m.Get("/", s.getMeeting)
	m.Get("/transcript.txt", s.exportText)
	m.Post("/process", s.processMeeting)
	m.Get("/search", s.searchMeeting)
	m.Post("/ask", s.askMeeting)
	m.Get("/utterances", s.listUtterances)
	m.Get("/utterances/:uid/context", s.contextWindow)
	m.Get("/speakers", s.getSpeakers)
	m.Put("/speakers", s.putSpeakers)
}

func (s *Server) checkID(c *fiber.Ctx) error {
	if !cfg.ValidMeetingID(c.Params("id")) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid meeting id")
	}
	return c.Next()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, transcript.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, retrieval.ErrNoIndex):
		code = fiber.StatusServiceUnavailable
	}
	if code >= fiber.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) listMeetings(c *fiber.Ctx) error {
	infos, err := s.store.List()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"meetings": infos})
}

func (s *Server) getMeeting(c *fiber.Ctx) error {
	t, err := s.store.Load(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"meeting_id": t.MeetingID,
		"title":      t.Title,
		"metadata":   t.Metadata,
		"summary":    orchestrator.Summarize(t.Utterances),
	})
}

func (s *Server) exportText(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return s.store.ExportText(c.Params("id"), c.Response().BodyWriter(), c.QueryBool("timestamps", true))
}

type processRequest struct {
	Title         string `json:"title"`
	ApplyLabels   *bool  `json:"apply_labels"`
	CreateVectors *bool  `json:"create_vectors"`
	Force         bool   `json:"force"`
}

func (s *Server) processMeeting(c *fiber.Ctx) error {
	var req processRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
		}
	}
	opts := orchestrator.Options{Title: req.Title, ApplyLabels: true, CreateVectors: true, Force: req.Force}
	if req.ApplyLabels != nil {
		opts.ApplyLabels = *req.ApplyLabels
	}
	if req.CreateVectors != nil {
		opts.CreateVectors = *req.CreateVectors
	}
	res := s.proc.Process(c.UserContext(), c.Params("id"), opts)
	if res.Status == orchestrator.StatusError {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}
	return c.JSON(res)
}

func (s *Server) searchMeeting(c *fiber.Ctx) error {
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}
	q := retrieval.Query{
		MeetingID: c.Params("id"),
		Text:      text,
		Limit:     c.QueryInt("limit", s.cfg.TopK),
		Semantic:  c.QueryBool("semantic", s.cfg.Semantic),
	}
	for _, r := range strings.Split(c.Query("role"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			q.Roles = append(q.Roles, r)
		}
	}
	res, err := s.search.Search(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"results": res, "context": retrieval.FormatForPrompt(res, true)})
}

type askRequest struct {
	Question string `json:"question"`
	Role     string `json:"role"`
}

func (s *Server) askMeeting(c *fiber.Ctx) error {
	var req askRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}
	if strings.TrimSpace(req.Question) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "question is required")
	}
	reply, err := s.ask.Ask(c.UserContext(), c.Params("id"), req.Question, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(reply)
}

// listUtterances filters the transcript by one of speaker, contains or a
// from/to time range, checked in that order.
func (s *Server) listUtterances(c *fiber.Ctx) error {
	id := c.Params("id")
	var (
		utts []transcript.Utterance
		err  error
	)
	switch {
	case c.Query("speaker") != "":
		utts, err = s.store.UtterancesBySpeaker(id, c.Query("speaker"))
	case c.Query("contains") != "":
		utts, err = s.store.UtterancesContaining(id, c.Query("contains"), c.QueryBool("case_sensitive"))
	case c.Query("from") != "" || c.Query("to") != "":
		utts, err = s.store.UtterancesInRange(id, c.QueryFloat("from", 0), c.QueryFloat("to", math.MaxFloat64))
	default:
		var t *transcript.Transcript
		if t, err = s.store.Load(id); err == nil {
			utts = t.Utterances
		}
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"utterances": utts})
}

func (s *Server) contextWindow(c *fiber.Ctx) error {
	uid, err := c.ParamsInt("uid")
	if err != nil || uid < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid utterance id")
	}
	utts, err := s.search.ContextWindow(c.Params("id"), uid, c.QueryInt("radius", s.cfg.ContextRadius))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"utterances": utts})
}

func (s *Server) getSpeakers(c *fiber.Ctx) error {
	m, _, err := s.store.LoadSpeakerMap(c.Params("id"))
	if err != nil {
		return err
	}
	if m == nil {
		m = transcript.SpeakerMap{}
	}
	return c.JSON(m)
}

// putSpeakers replaces the speaker map. With ?apply=true the stored
// transcript is relabelled as well.
func (s *Server) putSpeakers(c *fiber.Ctx) error {
	var m transcript.SpeakerMap
	if err := json.Unmarshal(c.Body(), &m); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "speaker map must be an object of strings")
	}
	id := c.Params("id")
	if err := s.store.SaveSpeakerMap(id, m); err != nil {
		return err
	}
	if c.QueryBool("apply") {
		t, err := s.store.Relabel(id, m)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"speaker_map": m, "speakers": t.Speakers()})
	}
	return c.JSON(fiber.Map{"speaker_map": m})
}
