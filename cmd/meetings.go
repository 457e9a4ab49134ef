package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

func newLabelCmd(o *rootOptions) *cobra.Command {
	var (
		file  string
		set   []string
		apply bool
	)
	cmd := &cobra.Command{
		Use:   "label <meeting-id>",
		Short: "Show or set the speaker map (SPEAKER_0=CEO) of a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := meetingArg(args)
			if err != nil {
				return err
			}
			st := store.New(o.conf.Paths)
			m, _, err := st.LoadSpeakerMap(id)
			if err != nil {
				return err
			}
			if file == "" && len(set) == 0 && !apply {
				return printJSON(cmd.OutOrStdout(), orEmpty(m))
			}

			if file != "" {
				if m, err = readSpeakerMap(file); err != nil {
					return err
				}
			}
			if len(set) > 0 {
				m = orEmpty(m)
				for _, kv := range set {
					label, role, ok := strings.Cut(kv, "=")
					if !ok || label == "" || role == "" {
						return fmt.Errorf("invalid --set %q, want LABEL=ROLE", kv)
					}
					m[label] = role
				}
			}
			if file != "" || len(set) > 0 {
				if err := st.SaveSpeakerMap(id, m); err != nil {
					return err
				}
			}
			if apply {
				t, err := st.Relabel(id, orEmpty(m))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "relabelled %d utterances, speakers: %s\n",
					len(t.Utterances), strings.Join(t.Speakers(), ", "))
			}
			return printJSON(cmd.OutOrStdout(), orEmpty(m))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the map from a YAML or JSON file")
	cmd.Flags().StringArrayVar(&set, "set", nil, "add one LABEL=ROLE mapping (repeatable)")
	cmd.Flags().BoolVar(&apply, "apply", false, "rewrite speakers in the stored transcript")
	return cmd
}

// readSpeakerMap decodes a flat label: role document. JSON is accepted as
// it is valid YAML.
func readSpeakerMap(path string) (transcript.SpeakerMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m transcript.SpeakerMap
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("speaker map %s: %w", path, err)
	}
	for label, role := range m {
		if strings.TrimSpace(role) == "" {
			return nil, fmt.Errorf("speaker map %s: empty role for %s", path, label)
		}
	}
	return orEmpty(m), nil
}

func orEmpty(m transcript.SpeakerMap) transcript.SpeakerMap {
	if m == nil {
		return transcript.SpeakerMap{}
	}
	return m
}

func newListCmd(o *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := store.New(o.conf.Paths).List()
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), infos)
			}
			if len(infos) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no processed meetings")
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tUTTERANCES\tDURATION")
			for _, m := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.1fs\n", m.MeetingID, m.Title, m.Utterances, m.Duration)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newExportCmd(o *rootOptions) *cobra.Command {
	var (
		out        string
		timestamps bool
	)
	cmd := &cobra.Command{
		Use:   "export <meeting-id>",
		Short: "Write the transcript as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := meetingArg(args)
			if err != nil {
				return err
			}
			st := store.New(o.conf.Paths)
			if out == "" || out == "-" {
				return st.ExportText(id, cmd.OutOrStdout(), timestamps)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := st.ExportText(id, f, timestamps); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&timestamps, "timestamps", true, "include utterance times")
	return cmd
}
