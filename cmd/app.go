package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	cachex "github.com/tanpawarit/bizlens/agent/cache"
	classifierx "github.com/tanpawarit/bizlens/agent/classifier"
	contractx "github.com/tanpawarit/bizlens/agent/contract"
	executorx "github.com/tanpawarit/bizlens/agent/executor"
	llmx "github.com/tanpawarit/bizlens/agent/llm"
	orchestratorx "github.com/tanpawarit/bizlens/agent/orchestrator"
	promptx "github.com/tanpawarit/bizlens/agent/prompt"
	statex "github.com/tanpawarit/bizlens/agent/state"
	summaryx "github.com/tanpawarit/bizlens/agent/summary"
	supervisorx "github.com/tanpawarit/bizlens/agent/supervisor"
	toolx "github.com/tanpawarit/bizlens/agent/tool"
	configx "github.com/tanpawarit/bizlens/pkg/config"
	qstashx "github.com/tanpawarit/bizlens/pkg/qstash"
)

// AppConfig carries the optional infrastructure toggles. Anything left empty
// falls back to in-memory implementations so the agent runs standalone.
type AppConfig struct {
	CacheDSN         string `envconfig:"CACHE_DSN" split_words:"true"`
	SessionBackend   string `envconfig:"SESSION_BACKEND" split_words:"true" default:"memory"`
	EventDestination string `envconfig:"EVENT_DESTINATION" split_words:"true"`
}

func buildOrchestrator(ctx context.Context) (*orchestratorx.Orchestrator, error) {
	appCfg, err := configx.New[AppConfig]("BIZLENS")
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}

	llmCfg, err := configx.New[llmx.Config]("OPENROUTER")
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	classifierCfg := llmCfg.OpenRouterFor(llmx.RoleClassifier)
	classifierModel, err := classifierCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build classifier model: %w", err)
	}
	cls, err := classifierx.New(ctx, classifierModel, prompts.Classifier)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	gen, err := llmx.NewTextGenerator(llmCfg.OpenRouterFor(llmx.RoleSummarizer))
	if err != nil {
		return nil, fmt.Errorf("build text generator: %w", err)
	}

	cache, err := buildCache(ctx, appCfg.CacheDSN)
	if err != nil {
		return nil, err
	}

	store, err := buildSessionStore(appCfg.SessionBackend)
	if err != nil {
		return nil, err
	}

	exec, err := executorx.New(toolx.NewBuiltinSet(), cache, executorx.Config{})
	if err != nil {
		return nil, fmt.Errorf("build executor: %w", err)
	}

	runner, err := supervisorx.NewRunner(exec, cache, supervisorx.Config{})
	if err != nil {
		return nil, fmt.Errorf("build supervisor: %w", err)
	}

	publisher, err := buildPublisher(appCfg.EventDestination)
	if err != nil {
		return nil, err
	}

	return orchestratorx.New(
		store,
		cls,
		runner,
		summaryx.NewGenerator(gen, prompts.Summary),
		gen,
		publisher,
		orchestratorx.Config{
			EventDestination: appCfg.EventDestination,
			ChatPrompt:       prompts.Chat,
		},
	)
}

func buildCache(ctx context.Context, dsn string) (cachex.Store, error) {
	if dsn == "" {
		log.Debug().Msg("no cache dsn configured, using in-memory entity cache")
		return cachex.NewMemoryStore(), nil
	}

	store, err := cachex.NewBunStore(cachex.BunConfig{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("open entity cache: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init entity cache schema: %w", err)
	}
	return store, nil
}

func buildSessionStore(backend string) (statex.SessionStore, error) {
	switch backend {
	case "", "memory":
		return statex.NewMemoryStore(), nil
	case "upstash":
		cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash config: %w", err)
		}
		return statex.NewUpstashRedisStore(*cfg)
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

func buildPublisher(destination string) (contractx.EventPublisher, error) {
	if destination == "" {
		return nil, nil
	}

	cfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, fmt.Errorf("load qstash config: %w", err)
	}
	client, err := qstashx.NewClient(*cfg)
	if err != nil {
		return nil, fmt.Errorf("build qstash client: %w", err)
	}
	return client, nil
}
