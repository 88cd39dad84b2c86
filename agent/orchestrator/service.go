package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
	nodex "github.com/tanpawarit/bizlens/agent/nodes"
	statex "github.com/tanpawarit/bizlens/agent/state"
	summaryx "github.com/tanpawarit/bizlens/agent/summary"
	supervisorx "github.com/tanpawarit/bizlens/agent/supervisor"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

const defaultMaxClarificationRounds = 2

type Config struct {
	// MaxClarificationRounds bounds how many times a session may be asked
	// to clarify before the turn proceeds with defaults.
	MaxClarificationRounds int

	// EventDestination is where completed search turns are announced.
	// Empty disables publishing.
	EventDestination string

	// ChatPrompt is the system prompt for small-talk replies.
	ChatPrompt string
}

func (c Config) withDefaults() Config {
	if c.MaxClarificationRounds <= 0 {
		c.MaxClarificationRounds = defaultMaxClarificationRounds
	}
	c.EventDestination = strings.TrimSpace(c.EventDestination)
	return c
}

// Orchestrator runs one conversational turn end to end: guardrail,
// classification, the supervisor loop over the tools, and the reply.
type Orchestrator struct {
	store      statex.SessionStore
	classifier contractx.Classifier
	runner     *supervisorx.Runner
	summarizer *summaryx.Generator
	chat       contractx.Generator
	publisher  contractx.EventPublisher
	cfg        Config

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	store statex.SessionStore,
	classifier contractx.Classifier,
	runner *supervisorx.Runner,
	summarizer *summaryx.Generator,
	chat contractx.Generator,
	publisher contractx.EventPublisher,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if runner == nil {
		return nil, errors.New("supervisor runner is required")
	}
	if summarizer == nil {
		summarizer = summaryx.NewGenerator(nil, "")
	}

	o := &Orchestrator{
		store:      store,
		classifier: classifier,
		runner:     runner,
		summarizer: summarizer,
		chat:       chat,
		publisher:  publisher,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (string, error) {
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}
