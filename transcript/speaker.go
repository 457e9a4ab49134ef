package transcript

// SpeakerMap maps diarization labels ("SPEAKER_0") to human roles ("CEO").
type SpeakerMap map[string]string

// Apply returns a copy of utts with every mapped speaker label replaced by
// its role. Unmapped speakers pass through unchanged.
func (m SpeakerMap) Apply(utts []Utterance) []Utterance {
	out := make([]Utterance, len(utts))
	copy(out, utts)
	for i := range out {
		if role, ok := m[out[i].Speaker]; ok {
			out[i].Speaker = role
		}
	}
	return out
}

// Reverse builds the role -> label map. When two labels share a role the
// surviving label is unspecified.
func (m SpeakerMap) Reverse() map[string]string {
	rev := make(map[string]string, len(m))
	for label, role := range m {
		rev[role] = label
	}
	return rev
}

// ResolveRole returns the label mapped to role, or role itself when no
// label maps to it, so callers may pass either form.
func (m SpeakerMap) ResolveRole(role string) string {
	if label, ok := m.Reverse()[role]; ok {
		return label
	}
	return role
}
