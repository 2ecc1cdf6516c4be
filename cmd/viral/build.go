package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/opportunity"
	"github.com/abelbrown/viralengine/internal/report"
	"github.com/abelbrown/viralengine/internal/store"
)

var nowFunc = time.Now

var (
	flagBuildLimit    int
	flagBuildChannels []string

	flagListStatus  string
	flagListChannel string
	flagListSince   time.Duration
	flagListLimit   int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Cluster recent signals into scored, gated opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		channels, err := parseChannels(flagBuildChannels)
		if err != nil {
			return err
		}
		industry := env.cfg.Ingest.Industry
		res, err := env.builder(cmd.Context()).Build(cmd.Context(), opportunity.Options{
			Industry:         industry,
			IndustryKeywords: env.cfg.IndustryKeywords(industry),
			Client:           env.client(),
			Channels:         channels,
			Limit:            flagBuildLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d signals, %d clusters, %d blocked, %d candidates in %s\n",
			res.Signals, res.Clusters, res.Blocked, res.Candidates, res.Duration.Round(time.Millisecond))
		report.Opportunities(out, res.Opportunities)
		report.Errors(out, res.Errors)
		return nil
	},
}

var opportunitiesCmd = &cobra.Command{
	Use:     "opportunities [id]",
	Aliases: []string{"opps"},
	Short:   "List opportunities, or show one",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			opp, err := env.store.GetOpportunity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report.Opportunity(out, opp)
			return nil
		}

		f := store.OpportunityFilter{
			ClientID: env.cfg.Client.ClientID,
			Industry: flagIndustry,
			Status:   model.OpportunityStatus(flagListStatus),
			Channel:  model.Channel(flagListChannel),
			Limit:    flagListLimit,
		}
		if flagListSince > 0 {
			f.Since = nowFunc().Add(-flagListSince)
		}
		opps, err := env.store.ListOpportunities(cmd.Context(), f)
		if err != nil {
			return err
		}
		report.Opportunities(out, opps)
		return nil
	},
}

var opportunityStatusCmd = &cobra.Command{
	Use:   "status <id> <shortlisted|generated|archived>",
	Short: "Move an opportunity through its lifecycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opp, err := env.builder(cmd.Context()).SetStatus(cmd.Context(), args[0], model.OpportunityStatus(args[1]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", opp.ID, opp.Status)
		return nil
	},
}

func parseChannels(names []string) ([]model.Channel, error) {
	var out []model.Channel
	for _, n := range names {
		ch := model.Channel(n)
		if !ch.Valid() {
			return nil, fmt.Errorf("unknown channel %q", n)
		}
		out = append(out, ch)
	}
	return out, nil
}

func init() {
	buildCmd.Flags().IntVar(&flagBuildLimit, "limit", 0, "max opportunities to keep (0 uses config)")
	buildCmd.Flags().StringSliceVar(&flagBuildChannels, "channel", nil, "channels to build for (blog, video, social)")

	opportunitiesCmd.Flags().StringVar(&flagListStatus, "status", "", "filter by status")
	opportunitiesCmd.Flags().StringVar(&flagListChannel, "channel", "", "filter by channel")
	opportunitiesCmd.Flags().DurationVar(&flagListSince, "since", 0, "only opportunities created within this duration")
	opportunitiesCmd.Flags().IntVar(&flagListLimit, "limit", 20, "max rows")
	opportunitiesCmd.AddCommand(opportunityStatusCmd)
}
