package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"scout/internal/agent"
	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/config"
	"scout/internal/embedding"
	scouterrors "scout/internal/errors"
	"scout/internal/llm"
	"scout/internal/logging"
	"scout/internal/memory"
	"scout/internal/storage"
	"scout/internal/toolregistry"
	"scout/internal/tools/builtin"
	"scout/internal/vectorstore"
)

func newResearchCmd() *cobra.Command {
	var (
		maxIterations int
		goalText      string
		criteria      []string
		complexity    string
	)

	cmd := &cobra.Command{
		Use:   "research [topic]",
		Short: "Run an autonomous research session on a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.Join(args, " ")

			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if maxIterations > 0 {
				cfg.Agent.MaxIterations = maxIterations
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}

			goal := types.Goal{
				Description:         goalText,
				SuccessCriteria:     criteria,
				EstimatedComplexity: types.Complexity(complexity),
			}
			if goal.Description == "" {
				goal.Description = "Research and explain: " + topic
			}
			if goal.EstimatedComplexity == "" {
				goal.EstimatedComplexity = types.ComplexityModerate
			}

			result := app.agent.Research(ctx, topic, goal, os.Getenv("USER"))
			printResult(cmd, result)
			if !result.Success {
				return fmt.Errorf("research did not complete: %s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override the iteration budget")
	cmd.Flags().StringVar(&goalText, "goal", "", "explicit research goal (default derived from topic)")
	cmd.Flags().StringSliceVar(&criteria, "criteria", nil, "success criteria, repeatable")
	cmd.Flags().StringVar(&complexity, "complexity", "", "estimated complexity: simple, moderate, complex")
	return cmd
}

// app bundles the wired subsystems.
type app struct {
	agent  *agent.Agent
	memory *memory.System
}

// buildApp wires storage, vectors, embeddings, the LLM, tools, memory, and
// the agent from configuration.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.NewComponentLogger("scout")
	if verbose {
		logger = logging.Multi(logger, logging.Stderr())
	}

	store, err := storage.NewFileStore(cfg.Memory.DataDir, logging.NewMemoryLogger("storage"))
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}

	var embedder ports.Embedder
	if cfg.Embedding.APIKey != "" {
		embedder, err = embedding.NewOpenAIEmbedder(embedding.Config{
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: cfg.Embedding.Dimension,
			CacheSize: cfg.Embedding.CacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
	} else {
		embedder = embedding.NewLocalEmbedder(0)
	}

	vectors, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		PersistPath: cfg.VectorPath(),
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("no LLM API key configured; set SCOUT_LLM_API_KEY or llm.api_key")
	}
	client, err := llm.NewOpenAIClient(cfg.LLM.Model, llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.TimeoutSecs,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	client = llm.NewRetryClient(client, scouterrors.DefaultRetryConfig())

	registry := toolregistry.New(logger)
	if cfg.Search.TavilyAPIKey != "" {
		registry.Register(builtin.NewWebSearch(cfg.Search.TavilyAPIKey), ports.RegisterOptions{Category: "web"})
	}
	registry.Register(builtin.NewWebFetch(), ports.RegisterOptions{Category: "web"})
	registry.Register(builtin.NewAnalyze(client), ports.RegisterOptions{Category: "reasoning"})
	registry.Register(builtin.NewVerify(client), ports.RegisterOptions{Category: "reasoning"})
	registry.Register(builtin.NewSynthesize(client), ports.RegisterOptions{Category: "reasoning"})

	mem := memory.NewSystem(store, vectors, embedder, client, memory.SystemConfig{
		ReflectionInterval: cfg.Memory.ReflectionInterval,
		ConsolidationAge:   cfg.ConsolidationAge(),
	}, logging.NewMemoryLogger("memory"))
	if err := mem.Init(ctx); err != nil {
		return nil, fmt.Errorf("init memory: %w", err)
	}

	researcher := agent.New(client, mem, registry, agent.Config{
		MaxIterations:        cfg.Agent.MaxIterations,
		ReflectionInterval:   cfg.Memory.ReflectionInterval,
		MaxContextTokens:     cfg.Memory.MaxContextTokens,
		EnableAutoReflection: cfg.Agent.EnableAutoReflection,
	}, logger)

	return &app{agent: researcher, memory: mem}, nil
}

func printResult(cmd *cobra.Command, result *types.ExecutionResult) {
	out := cmd.OutOrStdout()
	if result.Result == nil {
		fmt.Fprintf(out, "No result produced: %s\n", result.Error)
		return
	}

	r := result.Result
	fmt.Fprintf(out, "# %s\n\n", r.Topic)
	fmt.Fprintln(out, r.Synthesis)

	if len(r.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, source := range r.Sources {
			fmt.Fprintf(out, "- %s (%s)\n", source.Title, source.URL)
		}
	}
	fmt.Fprintf(out, "\nConfidence %.2f, completeness %.0f%%, %d iterations, %d reflections, %s\n",
		r.Confidence, r.Completeness*100, result.Iterations, result.Reflections, r.Duration.Round(timeRound))
}
