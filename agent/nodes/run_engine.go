package nodes

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
	statex "github.com/tanpawarit/bizlens/agent/state"
	summaryx "github.com/tanpawarit/bizlens/agent/summary"
	supervisorx "github.com/tanpawarit/bizlens/agent/supervisor"
)

const fallbackChatReply = "I can help you find and compare local businesses. Tell me what you are looking for and where."

// RunEngine executes the routed work for the turn: small talk, a
// clarification question, or a full supervisor pass over the tools.
func RunEngine(
	ctx context.Context,
	in *GraphState,
	runner *supervisorx.Runner,
	summarizer *summaryx.Generator,
	chat contractx.Generator,
	chatPrompt string,
) (*GraphState, error) {
	switch in.Route {
	case RouteBlocked:
		return in, nil

	case RouteClarify:
		in.Session.AppendMessage(statex.RoleAssistant, in.Reply, in.Now)
		return in, nil

	case RouteChat:
		in.Reply = chatReply(ctx, in, chat, chatPrompt)
		in.Session.AppendMessage(statex.RoleAssistant, in.Reply, in.Now)
		return in, nil

	case RouteFault:
		// The decision engine is down. Report what the session already
		// holds instead of failing the turn.
		in.Reply = "Sorry, I ran into a problem understanding that. " + summaryx.Render(in.Session)
		in.Session.FinalSummary = in.Reply
		in.Session.AppendMessage(statex.RoleAssistant, in.Reply, in.Now)
		return in, nil
	}

	trace, err := runner.Run(ctx, in.Session)
	if err != nil {
		return nil, err
	}
	in.Trace = trace

	in.Reply = summarizer.Summarize(ctx, in.Session)
	in.Session.FinalSummary = in.Reply
	in.Session.AppendMessage(statex.RoleAssistant, in.Reply, in.Now)
	return in, nil
}

func chatReply(ctx context.Context, in *GraphState, chat contractx.Generator, chatPrompt string) string {
	if chat == nil {
		return fallbackChatReply
	}
	reply, err := chat.Generate(ctx, chatPrompt, in.Text)
	if err != nil || reply == "" {
		log.Warn().Err(err).
			Str("session_id", in.SessionID).
			Msg("chat generation failed, using canned reply")
		return fallbackChatReply
	}
	return reply
}
