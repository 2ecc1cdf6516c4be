// Package report renders engine results for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/viralengine/internal/model"
)

// Opportunities writes one line per opportunity plus its score breakdown.
func Opportunities(w io.Writer, opps []model.Opportunity) {
	if len(opps) == 0 {
		fmt.Fprintln(w, Muted.Render("No opportunities."))
		return
	}
	fmt.Fprintln(w, Header.Render(fmt.Sprintf("Opportunities (%d)", len(opps))))
	for _, o := range opps {
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			Badge.Render(string(o.Channel)),
			fmt.Sprintf("%5.1f  ", o.Score),
			o.Topic,
		)
		fmt.Fprintln(w, line)
		b := o.ScoreBreakdown
		fmt.Fprintf(w, "       %s\n", Muted.Render(fmt.Sprintf(
			"%s  eng %.1f  fresh %.1f  rel %.1f  nov %.1f  season %.1f  %s",
			o.ID, b.Engagement, b.Freshness, b.Relevance, b.Novelty, b.Seasonality,
			statusStyle(string(o.Status)).Render(string(o.Status)))))
	}
}

// Opportunity writes the full detail of one opportunity.
func Opportunity(w io.Writer, o model.Opportunity) {
	fmt.Fprintln(w, Header.Render(o.Topic))
	field(w, "id", o.ID)
	field(w, "channel", string(o.Channel))
	field(w, "status", statusStyle(string(o.Status)).Render(string(o.Status)))
	field(w, "score", fmt.Sprintf("%.1f", o.Score))
	field(w, "angle", o.Angle)
	field(w, "hook", o.Hook)
	field(w, "reasoning", o.Reasoning)
	field(w, "signals", strings.Join(o.SourceSignalIDs, ", "))

	if o.SEOData == nil {
		return
	}
	si := o.SEOData.SearchIntelligence
	demand := string(si.DemandLevel)
	if si.SearchVolume != nil {
		demand = fmt.Sprintf("%s (%d/mo)", demand, *si.SearchVolume)
	}
	field(w, "demand", demand)
	field(w, "intent", string(si.Intent))
	field(w, "type", string(o.SEOData.OpportunityType))
	if o.SEOData.SearchDemandScore != nil {
		field(w, "demand score", fmt.Sprintf("%.1f", *o.SEOData.SearchDemandScore))
	}
	for _, g := range o.SEOData.Gates.Ordered() {
		mark := Good.Render("pass")
		if !g.Result.Passed {
			mark = ErrorStyle.Render("fail")
		}
		field(w, g.Name, mark+" "+g.Result.Reason)
	}
	for _, ch := range model.AllChannels {
		cs := o.SEOData.ChannelScores.For(ch)
		viable := Muted.Render("not viable")
		if cs.Viable {
			viable = Good.Render("viable")
		}
		field(w, string(ch), fmt.Sprintf("%.1f %s", cs.Score, viable))
	}
}

// Brief writes a brief card.
func Brief(w io.Writer, b model.CanonicalBrief) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", Badge.Render(string(b.Status)), Muted.Render(b.ID))
	if b.OpportunityID != "" {
		fmt.Fprintf(&sb, "%s%s\n", Label.Render("opportunity"), b.OpportunityID)
	}
	if b.ParentID != "" {
		fmt.Fprintf(&sb, "%s%s\n", Label.Render("parent"), b.ParentID)
	}
	if b.SupersededBy != "" {
		fmt.Fprintf(&sb, "%s%s\n", Label.Render("superseded by"), b.SupersededBy)
	}
	fmt.Fprintf(&sb, "%s%s\n", Label.Render("tension"), b.Content.CoreTension)
	fmt.Fprintf(&sb, "%s%s\n", Label.Render("angle"), b.Content.OurAngle)
	fmt.Fprintf(&sb, "%s%s\n", Label.Render("key claim"), b.Content.KeyClaim)
	for i, p := range b.Content.ProofPoints {
		name := ""
		if i == 0 {
			name = "proof"
		}
		fmt.Fprintf(&sb, "%s- %s\n", Label.Render(name), p)
	}
	fmt.Fprintf(&sb, "%s%s\n", Label.Render("why now"), b.Content.WhyNow)
	for i, c := range b.Content.NoGoClaims {
		name := ""
		if i == 0 {
			name = "no-go"
		}
		fmt.Fprintf(&sb, "%s- %s\n", Label.Render(name), c)
	}
	fmt.Fprintf(&sb, "%s%d signals, %s to %s",
		Label.Render("evidence"), len(b.Evidence),
		b.SourceDateRange.From.Format(time.DateOnly), b.SourceDateRange.To.Format(time.DateOnly))
	fmt.Fprintln(w, Card.Render(sb.String()))
}

// Briefs lists briefs one per line.
func Briefs(w io.Writer, briefs []model.CanonicalBrief) {
	if len(briefs) == 0 {
		fmt.Fprintln(w, Muted.Render("No briefs."))
		return
	}
	for _, b := range briefs {
		fmt.Fprintf(w, "%s %s  %s\n",
			statusStyle(string(b.Status)).Render(fmt.Sprintf("%-10s", b.Status)),
			Muted.Render(b.ID), b.Content.KeyClaim)
	}
}

// Generations lists content versions.
func Generations(w io.Writer, gens []model.BriefGeneration, full bool) {
	if len(gens) == 0 {
		fmt.Fprintln(w, Muted.Render("No generations."))
		return
	}
	for _, g := range gens {
		fmt.Fprintf(w, "%s v%d  %s  %s\n",
			Badge.Render(string(g.Channel)), g.Version,
			Muted.Render(g.CreatedAt.Format(time.RFC3339)),
			Muted.Render(fmt.Sprintf("%s, %d tokens", g.Usage.ModelID, g.Usage.TotalTokens)))
		if full {
			fmt.Fprintln(w, g.Content)
			fmt.Fprintln(w)
		}
	}
}

// Sources writes the per-source fetch status table.
func Sources(w io.Writer, statuses []model.SourceStatus, now time.Time) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, Muted.Render("No sources fetched yet."))
		return
	}
	fmt.Fprintln(w, Header.Render("Sources"))
	for _, s := range statuses {
		state := Good.Render("ok")
		if !s.Healthy() {
			state = ErrorStyle.Render("failing")
		}
		age := "never"
		if !s.LastFetched.IsZero() {
			age = now.Sub(s.LastFetched).Truncate(time.Minute).String() + " ago"
		}
		fmt.Fprintf(w, "%-30s %-8s items %-4d errors %-3d %s\n", s.Name, state, s.ItemCount, s.ErrorCount, Muted.Render(age))
		if s.LastError != "" {
			fmt.Fprintf(w, "  %s\n", ErrorStyle.Render(s.LastError))
		}
	}
}

// Errors lists non-fatal errors collected by a run.
func Errors(w io.Writer, errs []error) {
	for _, err := range errs {
		fmt.Fprintf(w, "%s %v\n", Caution.Render("!"), err)
	}
}

func field(w io.Writer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%s%s\n", Label.Render(name), value)
}
