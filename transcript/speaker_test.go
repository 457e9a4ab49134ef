package transcript

import "testing"

func TestApplyLabels(t *testing.T) {
	in := []Utterance{
		{ID: 1, Speaker: "SPEAKER_0", Text: "a"},
		{ID: 2, Speaker: "SPEAKER_1", Text: "b"},
		{ID: 3, Speaker: "SPEAKER_2", Text: "c"},
	}
	m := SpeakerMap{"SPEAKER_0": "CEO", "SPEAKER_1": "CFO"}

	out := m.Apply(in)
	want := []string{"CEO", "CFO", "SPEAKER_2"}
	for i, u := range out {
		if u.Speaker != want[i] {
			t.Errorf("utterance %d: speaker %q, want %q", u.ID, u.Speaker, want[i])
		}
		if u.ID != in[i].ID || u.Text != in[i].Text {
			t.Errorf("utterance %d changed beyond its speaker: %+v", u.ID, u)
		}
	}
	if in[0].Speaker != "SPEAKER_0" {
		t.Fatal("Apply mutated its input")
	}

	var none SpeakerMap
	if got := none.Apply(in); got[0].Speaker != "SPEAKER_0" {
		t.Fatal("nil map should pass speakers through")
	}
}

func TestResolveRole(t *testing.T) {
	m := SpeakerMap{"SPEAKER_0": "CEO", "SPEAKER_1": "CFO"}
	cases := map[string]string{
		"CEO":       "SPEAKER_0",
		"CFO":       "SPEAKER_1",
		"CTO":       "CTO",
		"SPEAKER_1": "SPEAKER_1",
	}
	for role, want := range cases {
		if got := m.ResolveRole(role); got != want {
			t.Errorf("ResolveRole(%q) = %q, want %q", role, got, want)
		}
	}
}

func TestResolveRoleCollisionPicksOneLabel(t *testing.T) {
	// Which label wins is unspecified; it only has to be one of them.
	m := SpeakerMap{"SPEAKER_0": "Analyst", "SPEAKER_3": "Analyst"}
	got := m.ResolveRole("Analyst")
	if got != "SPEAKER_0" && got != "SPEAKER_3" {
		t.Fatalf("ResolveRole returned %q", got)
	}
}
