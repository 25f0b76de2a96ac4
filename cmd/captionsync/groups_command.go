package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"captionsync/internal/engine"
	"captionsync/internal/sentence"
	"captionsync/internal/source"
	"captionsync/internal/timeline"
)

type groupView struct {
	Index   int    `json:"index"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Cues    int    `json:"cues"`
	Text    string `json:"text"`
}

func newGroupsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "groups <caption-file>",
		Short: "Show how a caption file is merged into translation units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			events, err := source.NewFile(args[0]).Fetch(cmd.Context())
			if err != nil {
				return err
			}
			track := timeline.New(engine.TimelineOptions(cfg))
			if err := track.Replace(events); err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			cues := track.Cues()
			grouping := sentence.Build(cues, engine.GroupingLimits(cfg))
			views := groupViews(grouping)

			if jsonOutput {
				return writeJSON(cmd, views)
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{
					strconv.Itoa(v.Index),
					formatPlayback(v.StartMs),
					formatPlayback(v.EndMs),
					strconv.Itoa(v.Cues),
					v.Text,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Start", "End", "Cues", "Text"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%d cues in %d groups\n", len(cues), grouping.Len())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func groupViews(g sentence.Grouping) []groupView {
	views := make([]groupView, 0, g.Len())
	for i, group := range g.Groups {
		views = append(views, groupView{
			Index:   i + 1,
			StartMs: group.StartMs,
			EndMs:   group.EndMs,
			Cues:    group.CueCount(),
			Text:    group.Text,
		})
	}
	return views
}
