// Package store persists meeting documents as JSON files, one set per
// meeting id. Writes replace whole documents through a temp file and a
// rename; there is no locking, so callers must not write the same meeting
// concurrently.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

type Store struct {
	paths cfg.Paths
	log   *logrus.Entry
}

func New(p cfg.Paths) *Store {
	return &Store{paths: p, log: logrus.WithField("component", "store")}
}

func (s *Store) Paths() cfg.Paths { return s.paths }

// Info is a short description of a processed meeting.
type Info struct {
	MeetingID  string  `json:"meeting_id"`
	Title      string  `json:"title"`
	Utterances int     `json:"utterances"`
	Duration   float64 `json:"duration"`
}

func (s *Store) Save(meetingID string, t *transcript.Transcript) error {
	if t == nil {
		return errors.New("store: nil transcript")
	}
	if t.MeetingID != meetingID {
		return errors.Errorf("store: transcript belongs to %q, not %q", t.MeetingID, meetingID)
	}
	path := s.paths.TranscriptPath(meetingID)
	if err := WriteJSON(path, t); err != nil {
		return errors.Wrapf(err, "save transcript %s", meetingID)
	}
	s.log.WithFields(logrus.Fields{"meeting_id": meetingID, "utterances": len(t.Utterances)}).Debugf("saved %s", path)
	return nil
}

// Load returns the transcript of meetingID. The error matches
// transcript.ErrNotFound when the meeting was never processed and
// transcript.ErrMalformed when the document cannot be decoded.
func (s *Store) Load(meetingID string) (*transcript.Transcript, error) {
	var t transcript.Transcript
	if err := ReadJSON(s.paths.TranscriptPath(meetingID), &t); err != nil {
		return nil, errors.Wrapf(err, "transcript %s", meetingID)
	}
	s.log.WithFields(logrus.Fields{"meeting_id": meetingID, "utterances": len(t.Utterances)}).Debug("loaded transcript")
	return &t, nil
}

// IsProcessed reports whether a transcript file exists for meetingID. The
// content is not validated.
func (s *Store) IsProcessed(meetingID string) bool {
	_, err := os.Stat(s.paths.TranscriptPath(meetingID))
	return err == nil
}

func (s *Store) SaveDiarization(meetingID string, segs []transcript.DiarizationSegment) error {
	if segs == nil {
		segs = []transcript.DiarizationSegment{}
	}
	return errors.Wrapf(WriteJSON(s.paths.DiarizationPath(meetingID), segs), "save diarization %s", meetingID)
}

func (s *Store) LoadDiarization(meetingID string) ([]transcript.DiarizationSegment, error) {
	var segs []transcript.DiarizationSegment
	if err := ReadJSON(s.paths.DiarizationPath(meetingID), &segs); err != nil {
		return nil, errors.Wrapf(err, "diarization %s", meetingID)
	}
	return segs, nil
}

func (s *Store) SaveSpeakerMap(meetingID string, m transcript.SpeakerMap) error {
	if m == nil {
		m = transcript.SpeakerMap{}
	}
	if err := WriteJSON(s.paths.SpeakerMapPath(meetingID), m); err != nil {
		return errors.Wrapf(err, "save speaker map %s", meetingID)
	}
	s.log.WithFields(logrus.Fields{"meeting_id": meetingID, "speakers": len(m)}).Info("saved speaker map")
	return nil
}

// LoadSpeakerMap returns ok=false with a nil error when meetingID has no
// speaker map.
func (s *Store) LoadSpeakerMap(meetingID string) (m transcript.SpeakerMap, ok bool, err error) {
	err = ReadJSON(s.paths.SpeakerMapPath(meetingID), &m)
	switch {
	case errors.Is(err, transcript.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, errors.Wrapf(err, "speaker map %s", meetingID)
	}
	return m, true, nil
}

// Relabel rewrites the speaker field of every mapped utterance and persists
// the whole transcript again.
func (s *Store) Relabel(meetingID string, m transcript.SpeakerMap) (*transcript.Transcript, error) {
	t, err := s.Load(meetingID)
	if err != nil {
		return nil, err
	}
	t.Utterances = m.Apply(t.Utterances)
	if err := s.Save(meetingID, t); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"meeting_id": meetingID, "speakers": len(m)}).Info("applied speaker labels")
	return t, nil
}

// List describes every meeting with a readable transcript, sorted by id.
// Unreadable transcripts are logged and skipped.
func (s *Store) List() ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(s.paths.Processed, "*_transcript.json"))
	if err != nil {
		return nil, errors.Wrap(err, "list transcripts")
	}
	out := make([]Info, 0, len(matches))
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), "_transcript.json")
		t, err := s.Load(id)
		if err != nil {
			s.log.WithError(err).Warnf("skipping %s", path)
			continue
		}
		out = append(out, Info{MeetingID: t.MeetingID, Title: t.Title, Utterances: len(t.Utterances), Duration: t.Metadata.TotalDuration})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeetingID < out[j].MeetingID })
	return out, nil
}

// WriteJSON encodes v as indented JSON and atomically replaces path.
func WriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadJSON decodes path into v. A missing file yields transcript.ErrNotFound
// and an undecodable one transcript.ErrMalformed.
func ReadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(transcript.ErrNotFound, path)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		if errors.Is(err, transcript.ErrMalformed) {
			return errors.Wrap(err, path)
		}
		return errors.Wrapf(transcript.ErrMalformed, "%s: %v", path, err)
	}
	return nil
}
