package orchestrator

import (
	"math"
	"sort"
	"strings"

	"github.com/maastricht-university/meeting-intelligence/transcript"
)

type SpeakerTime struct {
	Segments  int     `json:"segments"`
	TotalTime float64 `json:"total_time"`
	Share     float64 `json:"percentage"`
}

// DiarizationStats describes who spoke how long. Overlap is the fraction of
// the recording during which more than one speaker was active.
type DiarizationStats struct {
	TotalSpeakers int                     `json:"total_speakers"`
	TotalDuration float64                 `json:"total_duration"`
	OverlapRate   float64                 `json:"overlap_rate"`
	Speakers      map[string]*SpeakerTime `json:"speakers"`
}

func SpeakerStats(segs []transcript.DiarizationSegment) DiarizationStats {
	st := DiarizationStats{Speakers: map[string]*SpeakerTime{}}
	if len(segs) == 0 {
		return st
	}
	type edge struct {
		t     float64
		delta int
	}
	edges := make([]edge, 0, 2*len(segs))
	for _, s := range segs {
		st.TotalDuration = math.Max(st.TotalDuration, s.End)
		sp := st.Speakers[s.Speaker]
		if sp == nil {
			sp = &SpeakerTime{}
			st.Speakers[s.Speaker] = sp
		}
		sp.Segments++
		sp.TotalTime += math.Max(0, s.End-s.Start)
		edges = append(edges, edge{t: s.Start, delta: +1}, edge{t: s.End, delta: -1})
	}
	// ends sort before starts at the same instant so touching turns do not overlap
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].t != edges[j].t {
			return edges[i].t < edges[j].t
		}
		return edges[i].delta < edges[j].delta
	})
	active := 0
	last := edges[0].t
	overlap := 0.0
	for _, e := range edges {
		if active > 1 {
			overlap += e.t - last
		}
		active += e.delta
		last = e.t
	}

	st.TotalSpeakers = len(st.Speakers)
	for _, sp := range st.Speakers {
		if st.TotalDuration > 0 {
			sp.Share = round2(sp.TotalTime / st.TotalDuration * 100)
		}
		sp.TotalTime = round2(sp.TotalTime)
	}
	if st.TotalDuration > 0 {
		st.OverlapRate = round2(overlap / st.TotalDuration)
	}
	st.TotalDuration = round2(st.TotalDuration)
	return st
}

type SpeakerWords struct {
	Utterances int     `json:"utterances"`
	Words      int     `json:"words"`
	Duration   float64 `json:"duration"`
	WordShare  float64 `json:"word_percentage"`
}

type Summary struct {
	TotalUtterances int                      `json:"total_utterances"`
	TotalDuration   float64                  `json:"total_duration"`
	TotalWords      int                      `json:"total_words"`
	Speakers        map[string]*SpeakerWords `json:"speakers"`
}

// Summarize counts utterances, words and speaking time per speaker.
func Summarize(utts []transcript.Utterance) Summary {
	sum := Summary{Speakers: map[string]*SpeakerWords{}}
	for _, u := range utts {
		sum.TotalDuration = math.Max(sum.TotalDuration, u.End)
		words := len(strings.Fields(u.Text))
		sum.TotalWords += words
		sp := sum.Speakers[u.Speaker]
		if sp == nil {
			sp = &SpeakerWords{}
			sum.Speakers[u.Speaker] = sp
		}
		sp.Utterances++
		sp.Words += words
		sp.Duration += u.End - u.Start
	}
	sum.TotalUtterances = len(utts)
	for _, sp := range sum.Speakers {
		if sum.TotalWords > 0 {
			sp.WordShare = round2(float64(sp.Words) / float64(sum.TotalWords) * 100)
		}
		sp.Duration = round2(sp.Duration)
	}
	sum.TotalDuration = round2(sum.TotalDuration)
	return sum
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
