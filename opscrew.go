// Package opscrew wires the full multi-agent back office: one record store,
// one event bus, one goal tracker, the four domain agents and the
// orchestrator on top. Most applications interact with this package by:
//  1. Loading a config.Config (or building one in code)
//  2. Creating a System via New(), optionally overriding the model or store
//  3. Talking to System.Orchestrator (Dispatch, ExecuteWorkflow) or to a
//     single agent runtime from Team
package opscrew

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/opscrew/opscrew/agents"
	"github.com/opscrew/opscrew/bus"
	"github.com/opscrew/opscrew/config"
	"github.com/opscrew/opscrew/goal"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/model"
	anthropicmodel "github.com/opscrew/opscrew/model/anthropic"
	openaimodel "github.com/opscrew/opscrew/model/openai"
	"github.com/opscrew/opscrew/orchestrator"
	"github.com/opscrew/opscrew/store"
)

// Options override the collaborators New builds from the config.
type Options struct {
	// Model replaces the provider selected by cfg.Provider.
	Model model.Service
	// Store replaces the bbolt store opened under cfg.DataDir.
	Store store.Store
	// Logger replaces the logger built from cfg.LogLevel/LogFormat.
	Logger logging.Logger
}

// System is the assembled deployment.
type System struct {
	Config       *config.Config
	Bus          *bus.Bus
	Catalog      *store.Catalog
	Goals        *goal.Tracker
	Team         *agents.Team
	Orchestrator *orchestrator.Orchestrator

	recordStore store.Store
}

// New assembles a System from the config. The zero Options use the config's
// provider and a durable store under cfg.DataDir.
func New(cfg *config.Config, optFns ...func(o *Options)) (*System, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	}

	recordStore := opts.Store
	if recordStore == nil {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		boltStore, err := store.NewBoltStore(filepath.Join(cfg.DataDir, "opscrew.db"))
		if err != nil {
			return nil, fmt.Errorf("open record store: %w", err)
		}
		recordStore = boltStore
	}
	catalog := store.NewCatalog(recordStore, logger)

	svc := opts.Model
	if svc == nil {
		var err error
		svc, err = modelFromConfig(cfg)
		if err != nil {
			recordStore.Close()
			return nil, err
		}
	}

	eventBus := bus.New(bus.WithLogCap(cfg.EventLogCap), bus.WithLogger(logger))
	goals := goal.NewTracker()
	team := agents.NewTeam(agents.Deps{
		Model:        svc,
		Catalog:      catalog,
		Bus:          eventBus,
		Goals:        goals,
		LearningDir:  cfg.LearningDir,
		Logger:       logger,
		Threshold:    cfg.EscalationThreshold,
		MaxDecisions: cfg.MaxDecisions,
		MaxOverrides: cfg.MaxOverrides,
	})
	orch := orchestrator.New(svc, eventBus,
		orchestrator.WithLogger(logger),
		orchestrator.WithCompletedCap(cfg.CompletedWorkflows),
	)
	team.RegisterWith(orch)

	return &System{
		Config:       cfg,
		Bus:          eventBus,
		Catalog:      catalog,
		Goals:        goals,
		Team:         team,
		Orchestrator: orch,
		recordStore:  recordStore,
	}, nil
}

// Close releases the record store.
func (s *System) Close() error {
	return s.recordStore.Close()
}

func modelFromConfig(cfg *config.Config) (model.Service, error) {
	switch cfg.Provider {
	case "openai":
		return openaimodel.New(func(o *openaimodel.Options) {
			if cfg.Model != "" {
				o.ChatModel = cfg.Model
			}
			if cfg.PlanningModel != "" {
				o.PlanningModel = cfg.PlanningModel
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		}), nil
	case "anthropic":
		return anthropicmodel.New(func(o *anthropicmodel.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
		}), nil
	case "mock":
		return model.NewMock(), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
