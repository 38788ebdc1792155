// Package agentkernel wires the kernel together: capability registry,
// persona router, broadcast hub, task orchestrator, reasoning loop and the
// HTTP server, all built from a config.Config.
//
// Typical use:
//
//	cfg := config.Default()
//	k, err := agentkernel.New(func(o *agentkernel.Options) { o.Config = cfg })
//	if err != nil { ... }
//	defer k.Close()
//	err = k.Serve(ctx)
//
// Every collaborator can be replaced through Options, which is how tests
// run the kernel against scripted models and in-memory stores.
package agentkernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/broadcast"
	"github.com/hupe1980/agentkernel/checkpoint"
	"github.com/hupe1980/agentkernel/checkpoint/sqlite"
	"github.com/hupe1980/agentkernel/config"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/flow"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/model"
	anthropicmodel "github.com/hupe1980/agentkernel/model/anthropic"
	openaimodel "github.com/hupe1980/agentkernel/model/openai"
	"github.com/hupe1980/agentkernel/registry"
	"github.com/hupe1980/agentkernel/server"
	"github.com/hupe1980/agentkernel/task"
	"github.com/hupe1980/agentkernel/tool"
)

// ErrMissingCredential is returned by NewModel when the configured provider
// needs an API key that is not set.
var ErrMissingCredential = errors.New("model provider credential missing")

// Options configures a Kernel.
type Options struct {
	// Config defaults to config.Default().
	Config *config.Config
	// Model overrides the provider model built from Config.
	Model model.Model
	// Store overrides the checkpoint store selected by Config.
	Store core.CheckpointStore
	// Capabilities are registered in addition to the default model agent.
	Capabilities map[string]agent.Capability
	// Tools are offered to the reasoning loop next to the built-in agent
	// tools.
	Tools []tool.Tool
	// Personas overrides the persona table (and Config.Agents.PersonasFile).
	Personas []agent.Persona
	Logger   logging.Logger
}

// Kernel is the assembled kernel.
type Kernel struct {
	cfg          *config.Config
	logger       logging.Logger
	capabilities *registry.Registry[agent.Capability]
	tools        *registry.Registry[tool.Tool]
	router       *agent.Router
	hub          *broadcast.Hub
	orchestrator *task.Orchestrator
	loop         *flow.Loop
	server       *server.Server
	store        core.CheckpointStore
	closers      []func() error
}

// New assembles a kernel. The default model agent is registered only when
// a model is available; without one the kernel still starts and reports
// its task and chat endpoints as unavailable.
func New(optFns ...func(o *Options)) (*Kernel, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(cfg)
	}

	k := &Kernel{
		cfg:          cfg,
		logger:       logger,
		capabilities: registry.New[agent.Capability](),
		tools:        registry.New[tool.Tool](),
	}

	personas := opts.Personas
	if personas == nil && cfg.Agents.PersonasFile != "" {
		loaded, err := agent.LoadPersonas(cfg.Agents.PersonasFile)
		if err != nil {
			return nil, err
		}
		personas = loaded
	}

	llm := opts.Model
	if llm == nil {
		built, err := NewModel(cfg)
		switch {
		case errors.Is(err, ErrMissingCredential):
			logger.Warn("kernel.model.unavailable", "provider", cfg.Model.Provider, "error", err.Error())
		case err != nil:
			return nil, err
		default:
			llm = built
		}
	}

	temperature := cfg.Model.Temperature
	if llm != nil {
		bragi, err := agent.NewModelAgent(agent.DefaultBacking, llm, func(o *agent.ModelAgentOptions) {
			o.Temperature = &temperature
			o.Logger = logging.ForComponent(logger, "agent")
		})
		if err != nil {
			return nil, err
		}
		k.capabilities.Register(agent.DefaultBacking, bragi)
	}
	for name, c := range opts.Capabilities {
		k.capabilities.Register(name, c)
	}

	k.router = agent.NewRouter(k.capabilities, func(o *agent.RouterOptions) {
		if personas != nil {
			o.Personas = personas
		}
		o.DefaultPersonaID = cfg.Agents.DefaultAgentID
		o.Logger = logging.ForComponent(logger, "router")
	})
	k.hub = broadcast.NewHub(func(o *broadcast.HubOptions) {
		o.SendTimeout = time.Duration(cfg.Server.SendTimeoutSeconds) * time.Second
		o.Logger = logging.ForComponent(logger, "hub")
	})
	k.orchestrator = task.NewOrchestrator(k.router, k.hub, func(o *task.OrchestratorOptions) {
		o.Logger = logging.ForComponent(logger, "orchestrator")
	})

	for _, t := range append(agent.Tools(k.router), opts.Tools...) {
		k.tools.Register(t.Name(), t)
	}

	store := opts.Store
	if store == nil {
		s, closer, err := NewCheckpointStore(cfg, logging.ForComponent(logger, "checkpoint"))
		if err != nil {
			return nil, err
		}
		store = s
		if closer != nil {
			k.closers = append(k.closers, closer)
		}
	}
	k.store = store

	if llm != nil {
		loopLogger := logging.ForComponent(logger, "loop")
		k.loop = flow.NewLoop(llm, store, func(o *flow.LoopOptions) {
			o.SystemPrompt = agent.ArchitectPrompt
			o.Tools = k.tools
			o.MaxSteps = cfg.Agents.MaxSteps
			o.Temperature = &temperature
			o.Executor = flow.NewParallelFunctionExecutor(flow.FunctionExecutorConfig{
				MaxParallel: cfg.Agents.MaxParallelTools,
				Logger:      loopLogger,
			})
			o.Logger = loopLogger
		})
	}

	k.server = server.New(k.orchestrator, k.router, k.hub, func(o *server.Options) {
		o.AllowedOrigins = cfg.Server.AllowedOrigins
		o.Loop = k.loop
		o.Logger = logging.ForComponent(logger, "server")
	})

	logger.Info("kernel.ready",
		"environment", cfg.Environment,
		"provider", cfg.Model.Provider,
		"capabilities", k.capabilities.Names(),
		"tools", k.tools.Names(),
	)
	return k, nil
}

// NewLogger builds the kernel logger described by cfg, writing to stderr.
func NewLogger(cfg *config.Config) *logging.KernelLogger {
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	lc := logging.DefaultLoggerConfig()
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Output = os.Stderr
	lc.Component = "kernel"
	lc.CustomAttrs["environment"] = cfg.Environment
	return logging.NewLogger(lc)
}

// NewModel builds the language model selected by cfg.Model.Provider.
func NewModel(cfg *config.Config) (model.Model, error) {
	mc := cfg.Model
	switch mc.Provider {
	case config.ProviderOpenAI:
		if mc.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%s: %w", mc.Provider, ErrMissingCredential)
		}
		return openaimodel.NewModel(mc.OpenAIAPIKey, func(o *openaimodel.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.Temperature = mc.Temperature
		}), nil
	case config.ProviderAnthropic:
		if mc.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%s: %w", mc.Provider, ErrMissingCredential)
		}
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.APIKey = mc.AnthropicAPIKey
			// The shared default names an OpenAI model; keep the adapter's own.
			if mc.Name != "" && mc.Name != config.Default().Model.Name {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			o.Temperature = mc.Temperature
		}), nil
	case config.ProviderOllama:
		return openaimodel.NewOllamaModel(mc.OllamaBaseURL, func(o *openaimodel.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.Temperature = mc.Temperature
		}), nil
	case config.ProviderMock:
		return model.NewMockModel(mc.Name, "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// NewCheckpointStore opens the SQLite store at cfg.Checkpoint.Path, or an
// in-memory store when no path is configured. The returned closer is nil
// for the in-memory store.
func NewCheckpointStore(cfg *config.Config, logger logging.Logger) (core.CheckpointStore, func() error, error) {
	if cfg.Checkpoint.Path == "" {
		return checkpoint.NewInMemoryStore(), nil, nil
	}
	s, err := sqlite.Open(cfg.Checkpoint.Path, func(o *sqlite.Options) {
		o.PoolSize = cfg.Checkpoint.PoolSize
		o.Logger = logger
	})
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// Config returns the kernel configuration.
func (k *Kernel) Config() *config.Config { return k.cfg }

// Router returns the persona router.
func (k *Kernel) Router() *agent.Router { return k.router }

// Hub returns the broadcast hub.
func (k *Kernel) Hub() *broadcast.Hub { return k.hub }

// Orchestrator returns the task orchestrator.
func (k *Kernel) Orchestrator() *task.Orchestrator { return k.orchestrator }

// Loop returns the reasoning loop, or nil when no model is configured.
func (k *Kernel) Loop() *flow.Loop { return k.loop }

// Server returns the HTTP server.
func (k *Kernel) Server() *server.Server { return k.server }

// Tools returns the tool registry of the reasoning loop.
func (k *Kernel) Tools() *registry.Registry[tool.Tool] { return k.tools }

// Serve runs the HTTP server on the configured port until ctx is cancelled.
func (k *Kernel) Serve(ctx context.Context) error {
	return k.server.ListenAndServe(ctx, k.cfg.Addr())
}

// Close releases the checkpoint store.
func (k *Kernel) Close() error {
	var errs []error
	for _, c := range k.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
