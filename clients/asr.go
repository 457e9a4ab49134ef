package clients

import (
	"context"
	"strings"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
)

type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Segments []TransSeg `json:"segments"`
	Text     string     `json:"text"`
	Language string     `json:"language"`
}

func (h *HTTP) ASR(ctx context.Context, url, wavPath string) (*ASRResp, error) {
	var out ASRResp
	if err := h.postFile(ctx, "asr", url+"/transcribe", wavPath, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ASR transcribes short audio clips with the configured speech service.
type ASR struct {
	h   *HTTP
	url string
}

func NewASR(s cfg.Service) *ASR {
	return &ASR{h: NewHTTP(cfg.DurSeconds(s.TimeoutSec), s.APIKey), url: strings.TrimRight(s.URL, "/")}
}

// Transcribe returns the whitespace-trimmed text spoken in wavPath. When the
// service sends no full text the segment texts are joined with spaces.
func (a *ASR) Transcribe(ctx context.Context, wavPath string) (string, error) {
	resp, err := a.h.ASR(ctx, a.url, wavPath)
	if err != nil {
		return "", err
	}
	if t := strings.TrimSpace(resp.Text); t != "" {
		return t, nil
	}
	parts := make([]string, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
