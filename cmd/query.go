package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-intelligence/orchestrator"
	"github.com/maastricht-university/meeting-intelligence/qa"
	"github.com/maastricht-university/meeting-intelligence/retrieval"
	"github.com/maastricht-university/meeting-intelligence/store"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

func newSearchCmd(o *rootOptions) *cobra.Command {
	var (
		roles   []string
		limit   int
		keyword bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "search <meeting-id> <query>",
		Short: "Find the utterances most relevant to a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := meetingArg(args)
			if err != nil {
				return err
			}
			d, err := build(cmd.Context(), o.conf)
			if err != nil {
				return err
			}
			defer d.close()

			res, err := d.engine.Search(cmd.Context(), retrieval.Query{
				MeetingID: id,
				Text:      args[1],
				Roles:     roles,
				Limit:     limit,
				Semantic:  o.conf.Retrieval.Semantic && !keyword,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), retrieval.FormatForPrompt(res, true))
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "only utterances by these speakers (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (default retrieval.top_k)")
	cmd.Flags().BoolVar(&keyword, "keyword", false, "use keyword overlap instead of the vector index")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newContextCmd(o *rootOptions) *cobra.Command {
	var radius int
	cmd := &cobra.Command{
		Use:   "context <meeting-id> <utterance-id>",
		Short: "Show an utterance with its neighbours",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := meetingArg(args)
			if err != nil {
				return err
			}
			uid, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid utterance id %q", args[1])
			}
			if !cmd.Flags().Changed("radius") {
				radius = o.conf.Retrieval.ContextRadius
			}
			eng := retrieval.NewEngine(store.New(o.conf.Paths), nil, o.conf.Retrieval)
			utts, err := eng.ContextWindow(id, uid, radius)
			if err != nil {
				return err
			}
			if len(utts) == 0 {
				return fmt.Errorf("meeting %s has no utterance %d", id, uid)
			}
			w := cmd.OutOrStdout()
			for _, u := range utts {
				marker := " "
				if u.ID == uid {
					marker = ">"
				}
				fmt.Fprintf(w, "%s %3d %s [%.1fs-%.1fs]: %s\n", marker, u.ID, u.Speaker, u.Start, u.End, u.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&radius, "radius", 0, "neighbours on each side (default retrieval.context_radius)")
	return cmd
}

func newAskCmd(o *rootOptions) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "ask <meeting-id> <question>",
		Short: "Answer a question from the meeting transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := meetingArg(args)
			if err != nil {
				return err
			}
			d, err := build(cmd.Context(), o.conf)
			if err != nil {
				return err
			}
			defer d.close()

			reply, err := d.asst.Ask(cmd.Context(), id, args[1], role)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch reply.Status {
			case qa.StatusNoMeeting:
				_, err = fmt.Fprintf(w, "I don't have a processed meeting called %q.\n", id)
			case qa.StatusNoResults:
				_, err = fmt.Fprintln(w, "I couldn't find anything about that in the meeting.")
			default:
				_, err = fmt.Fprintln(w, reply.Answer)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&role, "role", "r", "", "focus on what this speaker said")
	return cmd
}

func newStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <meeting-id>",
		Short: "Show speaker statistics and index status of a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := meetingArg(args)
			if err != nil {
				return err
			}
			d, err := build(cmd.Context(), o.conf)
			if err != nil {
				return err
			}
			defer d.close()

			t, err := d.store.Load(id)
			if err != nil {
				return err
			}
			out := map[string]any{
				"meeting_id": t.MeetingID,
				"title":      t.Title,
				"transcript": orchestrator.Summarize(t.Utterances),
			}
			if segs, err := d.store.LoadDiarization(id); err == nil {
				out["diarization"] = orchestrator.SpeakerStats(segs)
			}
			if st, err := d.index.Stats(cmd.Context(), id); err == nil {
				out["index"] = st
			} else if errors.Is(err, transcript.ErrNotFound) {
				out["index"] = nil
			} else {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
