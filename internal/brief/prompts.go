package brief

import (
	"fmt"
	"strings"

	"github.com/abelbrown/viralengine/internal/model"
)

const briefSystemPrompt = `You are a content strategist. You turn raw audience signals into a creative brief that a writer can execute without further research.

Rules:
- Ground every proof point in the evidence provided. Do not invent statistics.
- Keep each field short and concrete.
- noGoClaims lists claims the evidence does not support.`

const contentSystemPrompt = `You are a senior content writer. You write from an approved creative brief and never contradict it.
Do not make any claim listed under "Do not claim".`

// briefPrompt renders the user prompt for a new brief.
func briefPrompt(opp *model.Opportunity, evidence []model.Evidence, feedback string) string {
	var b strings.Builder

	if opp != nil {
		fmt.Fprintf(&b, "Topic: %s\n", opp.Topic)
		if opp.Angle != "" {
			fmt.Fprintf(&b, "Suggested angle: %s\n", opp.Angle)
		}
		if opp.Hook != "" {
			fmt.Fprintf(&b, "Hook: %s\n", opp.Hook)
		}
		fmt.Fprintf(&b, "Channel: %s\n\n", opp.Channel)
	}

	b.WriteString("Evidence (audience signals, most engaged first):\n")
	for i, e := range evidence {
		fmt.Fprintf(&b, "%d. %s", i+1, e.Title)
		if e.Community != "" {
			fmt.Fprintf(&b, " [%s]", e.Community)
		}
		fmt.Fprintf(&b, " (%d upvotes, %d comments, %s)\n", e.Upvotes, e.Comments, e.Observed.Format("2006-01-02"))
		if e.Excerpt != "" {
			fmt.Fprintf(&b, "   %s\n", e.Excerpt)
		}
	}

	if feedback != "" {
		fmt.Fprintf(&b, "\nThe previous brief for these signals was not accepted. Reviewer feedback: %s\n", feedback)
	}

	b.WriteString("\nWrite the creative brief.")
	return b.String()
}

// repairPrompt asks for a corrected brief after a schema failure.
func repairPrompt(original, previous string, problems []string) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\nYour previous answer was rejected because it did not match the required JSON schema:\n")
	for _, p := range problems {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	fmt.Fprintf(&b, "\nPrevious answer:\n%s\n", truncate(previous, 2000))
	fmt.Fprintf(&b, "\nReturn a corrected JSON object only. proofPoints must contain %d to %d non-empty strings.", MinProofPoints, MaxProofPoints)
	return b.String()
}

var channelInstructions = map[model.Channel]string{
	model.ChannelBlog:   "Write a long-form blog post in markdown: title, introduction that states the tension, one section per proof point, and a conclusion that lands the key claim.",
	model.ChannelVideo:  "Write a short video script: a hook for the first five seconds, beats for each proof point with on-screen text cues, and a closing call to action.",
	model.ChannelSocial: "Write a social thread of five to eight posts. The first post carries the hook, the last restates the key claim.",
}

// contentPrompt renders the user prompt for a channel artifact.
func contentPrompt(b model.CanonicalBrief, ch model.Channel) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Core tension: %s\n", b.Content.CoreTension)
	fmt.Fprintf(&sb, "Our angle: %s\n", b.Content.OurAngle)
	fmt.Fprintf(&sb, "Key claim: %s\n", b.Content.KeyClaim)
	sb.WriteString("Proof points:\n")
	for _, p := range b.Content.ProofPoints {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	fmt.Fprintf(&sb, "Why now: %s\n", b.Content.WhyNow)
	if len(b.Content.NoGoClaims) > 0 {
		sb.WriteString("Do not claim:\n")
		for _, c := range b.Content.NoGoClaims {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	if len(b.Evidence) > 0 {
		sb.WriteString("Sources:\n")
		for _, e := range b.Evidence {
			fmt.Fprintf(&sb, "- %s %s\n", e.Title, e.URL)
		}
	}
	sb.WriteString("\n")
	sb.WriteString(channelInstructions[ch])
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
