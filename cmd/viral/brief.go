package main

import (
	"github.com/spf13/cobra"

	"github.com/abelbrown/viralengine/internal/brief"
	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/report"
	"github.com/abelbrown/viralengine/internal/store"
)

var (
	flagBriefSignals  []string
	flagBriefFeedback string
	flagBriefStatus   string
	flagBriefOpp      string
)

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Draft, review and regenerate canonical briefs",
}

var briefGenerateCmd = &cobra.Command{
	Use:   "generate [opportunity-id]",
	Short: "Draft a brief from an opportunity and/or explicit signals",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := brief.Request{SignalIDs: flagBriefSignals, ClientID: env.cfg.Client.ClientID}
		if len(args) == 1 {
			req.OpportunityID = args[0]
		}
		b, err := env.workflow().Generate(cmd.Context(), req)
		if err != nil {
			return err
		}
		report.Brief(cmd.OutOrStdout(), b)
		return nil
	},
}

var briefApproveCmd = &cobra.Command{
	Use:   "approve <brief-id>",
	Short: "Approve a draft brief",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := env.workflow().Approve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		report.Brief(cmd.OutOrStdout(), b)
		return nil
	},
}

var briefRejectCmd = &cobra.Command{
	Use:   "reject <brief-id>",
	Short: "Reject a draft brief",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := env.workflow().Reject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		report.Brief(cmd.OutOrStdout(), b)
		return nil
	},
}

var briefRegenerateCmd = &cobra.Command{
	Use:   "regenerate <brief-id>",
	Short: "Draft a replacement for an approved or rejected brief",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := env.workflow().Regenerate(cmd.Context(), args[0], flagBriefFeedback)
		if err != nil {
			return err
		}
		report.Brief(cmd.OutOrStdout(), b)
		return nil
	},
}

var briefShowCmd = &cobra.Command{
	Use:   "show <brief-id>",
	Short: "Show a brief",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := env.workflow().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		report.Brief(cmd.OutOrStdout(), b)
		return nil
	},
}

var briefListCmd = &cobra.Command{
	Use:   "list",
	Short: "List briefs",
	RunE: func(cmd *cobra.Command, args []string) error {
		briefs, err := env.workflow().List(cmd.Context(), store.BriefFilter{
			OpportunityID: flagBriefOpp,
			Status:        model.BriefStatus(flagBriefStatus),
		})
		if err != nil {
			return err
		}
		report.Briefs(cmd.OutOrStdout(), briefs)
		return nil
	},
}

func init() {
	briefGenerateCmd.Flags().StringSliceVar(&flagBriefSignals, "signal", nil, "signal ids to draft from")
	briefRegenerateCmd.Flags().StringVar(&flagBriefFeedback, "feedback", "", "reviewer feedback for the replacement")
	briefListCmd.Flags().StringVar(&flagBriefStatus, "status", "", "filter by status")
	briefListCmd.Flags().StringVar(&flagBriefOpp, "opportunity", "", "filter by opportunity id")

	briefCmd.AddCommand(briefGenerateCmd, briefApproveCmd, briefRejectCmd, briefRegenerateCmd, briefShowCmd, briefListCmd)
}

var (
	flagContentChannel string
	flagContentFull    bool
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Generate and list channel content from approved briefs",
}

var contentGenerateCmd = &cobra.Command{
	Use:   "generate <brief-id>",
	Short: "Append a new content version for a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := env.workflow().GenerateContent(cmd.Context(), args[0], model.Channel(flagContentChannel))
		if err != nil {
			return err
		}
		report.Generations(cmd.OutOrStdout(), []model.BriefGeneration{g}, true)
		return nil
	},
}

var contentListCmd = &cobra.Command{
	Use:   "list <brief-id>",
	Short: "List content versions of a brief",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gens, err := env.workflow().Generations(cmd.Context(), args[0], model.Channel(flagContentChannel))
		if err != nil {
			return err
		}
		report.Generations(cmd.OutOrStdout(), gens, flagContentFull)
		return nil
	},
}

func init() {
	contentGenerateCmd.Flags().StringVar(&flagContentChannel, "channel", string(model.ChannelBlog), "blog, video or social")
	contentListCmd.Flags().StringVar(&flagContentChannel, "channel", "", "only this channel")
	contentListCmd.Flags().BoolVar(&flagContentFull, "full", false, "print content bodies")
	contentCmd.AddCommand(contentGenerateCmd, contentListCmd)
}
