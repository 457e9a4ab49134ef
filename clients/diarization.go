package clients

import (
	"context"
	"strconv"
	"strings"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

type DiarizeResp struct {
	Segments []transcript.DiarizationSegment `json:"segments"`
}

func (h *HTTP) Diarize(ctx context.Context, url, audioPath string, minSpeakers, maxSpeakers int) (*DiarizeResp, error) {
	fields := map[string]string{
		"min_speakers": strconv.Itoa(minSpeakers),
		"max_speakers": strconv.Itoa(maxSpeakers),
	}
	var out DiarizeResp
	if err := h.postFile(ctx, "diarize", url+"/diarize", audioPath, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Diarizer splits a recording into raw speaker turns.
type Diarizer struct {
	h   *HTTP
	url string
}

func NewDiarizer(s cfg.Service) *Diarizer {
	return &Diarizer{h: NewHTTP(cfg.DurSeconds(s.TimeoutSec), s.APIKey), url: strings.TrimRight(s.URL, "/")}
}

func (d *Diarizer) Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers int) ([]transcript.DiarizationSegment, error) {
	resp, err := d.h.Diarize(ctx, d.url, audioPath, minSpeakers, maxSpeakers)
	if err != nil {
		return nil, err
	}
	if resp.Segments == nil {
		return []transcript.DiarizationSegment{}, nil
	}
	return resp.Segments, nil
}
