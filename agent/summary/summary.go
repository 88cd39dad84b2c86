// Package summary renders the gathered data tiers into one final response.
// Render is pure and deterministic; Generator optionally rewrites the
// rendered report through an LLM and falls back to the plain render when the
// model is unavailable, so the user never sees a raw failure.
package summary

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
	statex "github.com/tanpawarit/bizlens/agent/state"
)

// Render concatenates whatever tiers are present into a readable report,
// omitting sections whose tier is missing.
func Render(st *statex.ConversationState) string {
	if st == nil {
		return "I could not put together a report for this request."
	}

	var b strings.Builder

	subject := st.SearchQuery
	if subject == "" {
		subject = "your request"
	}
	if st.SearchLocation != "" {
		fmt.Fprintf(&b, "Here is what I found for %q in %s", subject, st.SearchLocation)
	} else {
		fmt.Fprintf(&b, "Here is what I found for %q", subject)
	}
	fmt.Fprintf(&b, " (detail level: %s).\n", st.DetailLevel)

	search := st.ToolOutputs.Search
	if search == nil || !search.Success {
		b.WriteString("\nI was unable to complete the search")
		if search != nil && search.Error != "" {
			fmt.Fprintf(&b, ": %s", search.Error)
		}
		b.WriteString(". Please try again or rephrase your request.\n")
		return strings.TrimSpace(b.String())
	}

	b.WriteString("\n")
	for i, ent := range search.Entities {
		fmt.Fprintf(&b, "%d. %s: %.1f stars (%d reviews)", i+1, ent.Name, ent.Rating, ent.ReviewCount)
		if len(ent.Categories) > 0 {
			fmt.Fprintf(&b, ", %s", strings.Join(ent.Categories, "/"))
		}
		if ent.PriceRange != "" {
			fmt.Fprintf(&b, ", %s", ent.PriceRange)
		}
		if ent.Location != "" {
			fmt.Fprintf(&b, ", %s", ent.Location)
		}
		if ent.Phone != "" {
			fmt.Fprintf(&b, ", %s", ent.Phone)
		}
		b.WriteString("\n")

		writeDetailSection(&b, st, ent.ID)
		writeSentimentSection(&b, st, ent.ID)
	}

	writeFailureNotes(&b, st)
	return strings.TrimSpace(b.String())
}

func writeDetailSection(b *strings.Builder, st *statex.ConversationState, entityID string) {
	out := st.ToolOutputs.Details
	if out == nil || !out.Success {
		return
	}
	info, ok := out.Items[entityID]
	if !ok {
		return
	}
	if !info.HasContent {
		b.WriteString("   Website details: no content available.\n")
		return
	}
	content := info.WebsiteContent
	if len(content) > 280 {
		content = truncateOnRune(content, 280) + "..."
	}
	fmt.Fprintf(b, "   Website details: %s\n", content)
}

// truncateOnRune cuts s to at most max bytes, backing up so a multibyte
// rune is never split.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func writeSentimentSection(b *strings.Builder, st *statex.ConversationState, entityID string) {
	out := st.ToolOutputs.Sentiment
	if out == nil || !out.Success {
		return
	}
	info, ok := out.Items[entityID]
	if !ok {
		return
	}
	fmt.Fprintf(b, "   Reviewer sentiment: %s (%d positive / %d neutral / %d negative of %d reviews)\n",
		info.OverallLabel, info.Positive, info.Neutral, info.Negative, info.TotalReviews)
	for _, ex := range info.Exemplars {
		fmt.Fprintf(b, "   - %q\n", ex)
	}
}

// writeFailureNotes labels the report as partial when a required tier could
// not be fetched.
func writeFailureNotes(b *strings.Builder, st *statex.ConversationState) {
	if out := st.ToolOutputs.Details; out != nil && !out.Success {
		b.WriteString("\nNote: I could not retrieve website details")
		if out.Error != "" {
			fmt.Fprintf(b, " (%s)", out.Error)
		}
		b.WriteString(", so this report only covers the basic listing.\n")
	}
	if out := st.ToolOutputs.Sentiment; out != nil && !out.Success {
		b.WriteString("\nNote: I could not analyze reviewer sentiment")
		if out.Error != "" {
			fmt.Fprintf(b, " (%s)", out.Error)
		}
		b.WriteString(", so this report only covers the basic listing.\n")
	}
}

// Generator narrates the rendered report through an LLM when one is
// configured.
type Generator struct {
	gen    contractx.Generator
	prompt string
}

// NewGenerator accepts a nil Generator, in which case Summarize returns the
// deterministic render unchanged.
func NewGenerator(gen contractx.Generator, systemPrompt string) *Generator {
	return &Generator{gen: gen, prompt: strings.TrimSpace(systemPrompt)}
}

func (g *Generator) Summarize(ctx context.Context, st *statex.ConversationState) string {
	report := Render(st)
	if g == nil || g.gen == nil || g.prompt == "" {
		return report
	}

	narrated, err := g.gen.Generate(ctx, g.prompt, report)
	if err != nil {
		log.Warn().Err(err).Str("component", "summary").Msg("narration failed, returning plain render")
		return report
	}
	return narrated
}
