package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Paths locates every per-meeting document. All locations are derived from
// the meeting id, so two Paths values with the same roots always agree.
type Paths struct {
	Recordings  string `yaml:"recordings" mapstructure:"recordings"`
	Processed   string `yaml:"processed" mapstructure:"processed"`
	SpeakerMaps string `yaml:"speaker_maps" mapstructure:"speaker_maps"`
}

// AudioExtensions are tried in order when looking up a meeting recording.
var AudioExtensions = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg"}

var reMeetingID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidMeetingID reports whether id is usable as a file name stem.
func ValidMeetingID(id string) bool { return reMeetingID.MatchString(id) }

// Under returns a copy of p with every relative root joined onto dir.
func (p Paths) Under(dir string) Paths {
	join := func(s string) string {
		if filepath.IsAbs(s) {
			return s
		}
		return filepath.Join(dir, s)
	}
	return Paths{Recordings: join(p.Recordings), Processed: join(p.Processed), SpeakerMaps: join(p.SpeakerMaps)}
}

func (p Paths) Ensure() error {
	for _, d := range []string{p.Recordings, p.Processed, p.SpeakerMaps} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (p Paths) DiarizationPath(meetingID string) string {
	return filepath.Join(p.Processed, meetingID+"_diarization.json")
}

func (p Paths) TranscriptPath(meetingID string) string {
	return filepath.Join(p.Processed, meetingID+"_transcript.json")
}

func (p Paths) IndexPath(meetingID string) string {
	return filepath.Join(p.Processed, meetingID+"_embeddings.json")
}

func (p Paths) SpeakerMapPath(meetingID string) string {
	return filepath.Join(p.SpeakerMaps, meetingID+"_speaker_map.json")
}

// AudioPath finds the recording for meetingID. The returned error wraps
// os.ErrNotExist when no file with a known extension exists.
func (p Paths) AudioPath(meetingID string) (string, error) {
	for _, ext := range AudioExtensions {
		path := filepath.Join(p.Recordings, meetingID+ext)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no audio file for meeting %q in %s (tried %v): %w",
		meetingID, p.Recordings, AudioExtensions, os.ErrNotExist)
}
