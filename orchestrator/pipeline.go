// Package orchestrator runs a meeting recording through diarization,
// segment merging, per-segment transcription, optional speaker labelling
// and embedding, persisting each stage before the next starts.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

type Diarizer interface {
	Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers int) ([]transcript.DiarizationSegment, error)
}

// Cutter writes a time range of a recording to a standalone clip. The
// caller removes the returned file.
type Cutter interface {
	Cut(ctx context.Context, audioPath string, start, end float64) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, clipPath string) (string, error)
}

type Indexer interface {
	Upsert(ctx context.Context, meetingID string, utts []transcript.Utterance) error
	Delete(ctx context.Context, meetingID string) error
}

type Pipeline struct {
	cfg      *cfg.Root
	store    *store.Store
	diarizer Diarizer
	cutter   Cutter
	asr      Transcriber
	index    Indexer
	log      *logrus.Entry
}

// NewPipeline wires the stages. idx may be nil when vectors are never
// requested.
func NewPipeline(c *cfg.Root, st *store.Store, d Diarizer, cut Cutter, asr Transcriber, idx Indexer) *Pipeline {
	return &Pipeline{
		cfg:      c,
		store:    st,
		diarizer: d,
		cutter:   cut,
		asr:      asr,
		index:    idx,
		log:      logrus.WithField("component", "pipeline"),
	}
}

// Process runs the pipeline for meetingID and never returns a Go error:
// failures are reported in the Result with StatusError. A meeting that
// already has a transcript is summarised without touching disk unless
// opts.Force is set.
func (p *Pipeline) Process(ctx context.Context, meetingID string, opts Options) Result {
	runID := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{"meeting_id": meetingID, "run_id": runID})

	fail := func(err error) Result {
		log.WithError(err).Error("processing failed")
		return Result{MeetingID: meetingID, Title: opts.Title, Status: StatusError, Error: err.Error(), RunID: runID}
	}

	if !cfg.ValidMeetingID(meetingID) {
		return fail(fmt.Errorf("invalid meeting id %q", meetingID))
	}

	if p.store.IsProcessed(meetingID) && !opts.Force {
		t, err := p.store.Load(meetingID)
		if err != nil {
			return fail(err)
		}
		log.Info("meeting already processed (use force to reprocess)")
		return summary(t, StatusAlreadyProcessed, runID)
	}

	audio, err := p.store.Paths().AudioPath(meetingID)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", transcript.ErrNotFound, err))
	}
	log.WithField("audio", audio).Info("processing meeting")

	t, err := p.run(ctx, log, meetingID, audio, opts)
	if err != nil {
		return fail(err)
	}
	res := summary(t, StatusSuccess, runID)
	log.WithFields(logrus.Fields{
		"utterances": res.Utterances,
		"speakers":   res.Speakers,
		"duration":   fmt.Sprintf("%.1fs", res.Duration),
	}).Info("processing complete")
	return res
}

func (p *Pipeline) run(ctx context.Context, log *logrus.Entry, meetingID, audio string, opts Options) (*transcript.Transcript, error) {
	segs, err := p.diarize(ctx, log, meetingID, audio)
	if err != nil {
		return nil, &StageError{Stage: Diarized, Err: err}
	}

	t, err := p.transcribe(ctx, log, meetingID, audio, opts.Title, segs)
	if err != nil {
		return nil, &StageError{Stage: Transcribed, Err: err}
	}

	if opts.ApplyLabels {
		m, ok, err := p.store.LoadSpeakerMap(meetingID)
		if err != nil {
			return nil, &StageError{Stage: Labeled, Err: err}
		}
		if ok {
			if t, err = p.store.Relabel(meetingID, m); err != nil {
				return nil, &StageError{Stage: Labeled, Err: err}
			}
			log.WithField("state", Labeled).Info("speaker labels applied")
		}
	}

	if opts.CreateVectors {
		if p.index == nil {
			return nil, &StageError{Stage: Embedded, Err: errors.New("no vector index configured")}
		}
		if err := p.index.Upsert(ctx, meetingID, t.Utterances); err != nil {
			return nil, &StageError{Stage: Embedded, Err: err}
		}
		log.WithField("state", Embedded).Info("vector embeddings created")
	}
	return t, nil
}

func (p *Pipeline) diarize(ctx context.Context, log *logrus.Entry, meetingID, audio string) ([]transcript.DiarizationSegment, error) {
	d := p.cfg.Diarization
	raw, err := p.diarizer.Diarize(ctx, audio, d.MinSpeakers, d.MaxSpeakers)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveDiarization(meetingID, raw); err != nil {
		return nil, err
	}
	merged := transcript.Merge(raw, d.MergeGap)

	st := SpeakerStats(merged)
	log.WithFields(logrus.Fields{
		"state":    Diarized,
		"raw":      len(raw),
		"segments": len(merged),
		"speakers": st.TotalSpeakers,
		"overlap":  st.OverlapRate,
	}).Info("diarization complete")
	for spk, s := range st.Speakers {
		log.Debugf("%s: %d segments, %.1fs (%.2f%%)", spk, s.Segments, s.TotalTime, s.Share)
	}
	return merged, nil
}

// transcribe turns every merged segment into one utterance. A segment whose
// clip cannot be cut or transcribed keeps its slot with FailedText, so ids
// stay contiguous and aligned with the audio.
func (p *Pipeline) transcribe(ctx context.Context, log *logrus.Entry, meetingID, audio, title string, segs []transcript.DiarizationSegment) (*transcript.Transcript, error) {
	utts := make([]transcript.Utterance, 0, len(segs))
	failed := 0
	for i, s := range segs {
		// a cancelled run stops before anything is written
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u := transcript.Utterance{ID: i + 1, Speaker: s.Speaker, Start: s.Start, End: s.End}
		text, err := p.transcribeSegment(ctx, audio, s)
		if err != nil {
			log.WithError(err).Warnf("segment %d/%d [%.1fs - %.1fs] failed", i+1, len(segs), s.Start, s.End)
			text = transcript.FailedText
			failed++
		}
		u.Text = text
		utts = append(utts, u)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := transcript.New(meetingID, title, utts, transcript.Metadata{
		ASRModel:         p.cfg.Services.ASR.Model,
		ASRLanguage:      p.cfg.Audio.Language,
		DiarizationModel: p.cfg.Services.Diarization.Model,
	})
	// vectors of a previous run describe utterances that are about to go
	if p.index != nil {
		if err := p.index.Delete(ctx, meetingID); err != nil {
			return nil, fmt.Errorf("drop stale index: %w", err)
		}
	}
	if err := p.store.Save(meetingID, t); err != nil {
		return nil, err
	}
	sum := Summarize(t.Utterances)
	log.WithFields(logrus.Fields{
		"state":      Transcribed,
		"utterances": len(utts),
		"failed":     failed,
		"words":      sum.TotalWords,
	}).Info("transcription complete")
	return t, nil
}

func (p *Pipeline) transcribeSegment(ctx context.Context, audio string, s transcript.DiarizationSegment) (string, error) {
	clip, err := p.cutter.Cut(ctx, audio, s.Start, s.End)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	defer os.Remove(clip)
	text, err := p.asr.Transcribe(ctx, clip)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}

func summary(t *transcript.Transcript, status, runID string) Result {
	return Result{
		MeetingID:  t.MeetingID,
		Title:      t.Title,
		Status:     status,
		Utterances: len(t.Utterances),
		Speakers:   len(t.Speakers()),
		Duration:   t.Metadata.TotalDuration,
		RunID:      runID,
	}
}
