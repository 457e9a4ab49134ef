package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  log_level: debug
services:
  asr:
    url: http://asr:9001
retrieval:
  top_k: 5
index:
  backend: redis
  redis:
    addr: cache:6379
paths:
  processed: /data/processed
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.LogLvl != "debug" {
		t.Fatalf("expected debug log level, got %q", cfg.Pipeline.LogLvl)
	}
	if cfg.Services.ASR.URL != "http://asr:9001" {
		t.Fatalf("unexpected asr url %q", cfg.Services.ASR.URL)
	}
	if cfg.Services.ASR.TimeoutSec != 300 {
		t.Fatalf("expected default asr timeout, got %d", cfg.Services.ASR.TimeoutSec)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.ContextRadius != 2 || !cfg.Retrieval.Semantic {
		t.Fatalf("unexpected retrieval config %+v", cfg.Retrieval)
	}
	if cfg.Index.Backend != "redis" || cfg.Index.Redis.Addr != "cache:6379" || cfg.Index.Redis.Prefix != "meeting" {
		t.Fatalf("unexpected index config %+v", cfg.Index)
	}
	if cfg.Diarization.MergeGap != 1.0 || cfg.Diarization.MinSpeakers != 2 || cfg.Diarization.MaxSpeakers != 10 {
		t.Fatalf("unexpected diarization config %+v", cfg.Diarization)
	}
	if cfg.Paths.Processed != "/data/processed" {
		t.Fatalf("unexpected processed path %q", cfg.Paths.Processed)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  top_k: 5\n")
	t.Setenv("MEETING_RETRIEVAL_TOP_K", "7")
	t.Setenv("MEETING_INDEX_CASSANDRA_HOSTS", "db-1,db-2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Fatalf("expected env override 7, got %d", cfg.Retrieval.TopK)
	}
	if len(cfg.Index.Cassandra.Hosts) != 2 || cfg.Index.Cassandra.Hosts[1] != "db-2" {
		t.Fatalf("unexpected cassandra hosts %v", cfg.Index.Cassandra.Hosts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"backend":  "index:\n  backend: sqlite\n",
		"speakers": "diarization:\n  min_speakers: 5\n  max_speakers: 2\n",
		"gap":      "diarization:\n  merge_gap: -1\n",
		"top_k":    "retrieval:\n  top_k: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDumpRedactsKeys(t *testing.T) {
	cfg, err := Load(writeConfig(t, "services:\n  llm:\n    api_key: sk-secret\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var buf bytes.Buffer
	if err := cfg.Dump(&buf); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if strings.Contains(buf.String(), "sk-secret") {
		t.Fatal("dump leaked api key")
	}
	if cfg.Services.LLM.APIKey != "sk-secret" {
		t.Fatal("dump mutated the loaded config")
	}
}

func TestPaths(t *testing.T) {
	p := Paths{Recordings: "rec", Processed: "proc", SpeakerMaps: "maps"}.Under(t.TempDir())
	if err := p.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if got := filepath.Base(p.TranscriptPath("q3")); got != "q3_transcript.json" {
		t.Fatalf("unexpected transcript file %q", got)
	}
	if got := filepath.Base(p.SpeakerMapPath("q3")); got != "q3_speaker_map.json" {
		t.Fatalf("unexpected speaker map file %q", got)
	}

	if _, err := p.AudioPath("q3"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	want := filepath.Join(p.Recordings, "q3.mp3")
	if err := os.WriteFile(want, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := p.AudioPath("q3")
	if err != nil || got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestValidMeetingID(t *testing.T) {
	for id, want := range map[string]bool{
		"sample_earnings_call": true,
		"q3-2024":              true,
		"":                     false,
		"../etc":               false,
		"a b":                  false,
	} {
		if got := ValidMeetingID(id); got != want {
			t.Errorf("ValidMeetingID(%q) = %v, want %v", id, got, want)
		}
	}
}
