package index

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

// File keeps one JSON document of embeddings per meeting next to the
// transcript.
type File struct {
	paths cfg.Paths
	emb   Embedder
	model string
	log   *logrus.Entry
}

func NewFile(p cfg.Paths, emb Embedder, model string) *File {
	return &File{paths: p, emb: emb, model: model, log: logrus.WithField("component", "index.file")}
}

type fileDoc struct {
	MeetingID  string    `json:"meeting_id"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  time.Time `json:"created_at"`
	Entries    []entry   `json:"entries"`
}

func (f *File) Upsert(ctx context.Context, meetingID string, utts []transcript.Utterance) error {
	entries, err := embedAll(ctx, f.emb, utts)
	if err != nil {
		return err
	}
	doc := fileDoc{
		MeetingID:  meetingID,
		Model:      f.model,
		Dimensions: dimensions(entries),
		CreatedAt:  time.Now().UTC(),
		Entries:    entries,
	}
	if err := store.WriteJSON(f.paths.IndexPath(meetingID), doc); err != nil {
		return errors.Wrapf(err, "write index %s", meetingID)
	}
	f.log.WithFields(logrus.Fields{"meeting_id": meetingID, "entries": len(entries), "dims": doc.Dimensions}).Info("index written")
	return nil
}

func (f *File) Query(ctx context.Context, meetingID, text string, topK int, speaker string) ([]transcript.SearchResult, error) {
	doc, err := f.load(meetingID)
	if err != nil {
		return nil, err
	}
	q, err := embedQuery(ctx, f.emb, text)
	if err != nil {
		return nil, err
	}
	res := rank(doc.Entries, q, topK, speaker)
	f.log.WithFields(logrus.Fields{"meeting_id": meetingID, "speaker": speaker, "hits": len(res)}).Debug("query")
	return res, nil
}

func (f *File) Stats(_ context.Context, meetingID string) (Stats, error) {
	doc, err := f.load(meetingID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{MeetingID: meetingID, Entries: len(doc.Entries), Dimensions: doc.Dimensions, Model: doc.Model}, nil
}

func (f *File) Delete(_ context.Context, meetingID string) error {
	err := os.Remove(f.paths.IndexPath(meetingID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete index %s", meetingID)
	}
	return nil
}

func (f *File) load(meetingID string) (*fileDoc, error) {
	var doc fileDoc
	err := store.ReadJSON(f.paths.IndexPath(meetingID), &doc)
	if errors.Is(err, transcript.ErrNotFound) {
		return nil, errors.Wrapf(ErrNoIndex, "meeting %s", meetingID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "index %s", meetingID)
	}
	return &doc, nil
}
