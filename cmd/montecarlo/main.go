package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"montecarlo/agent"
	"montecarlo/config"
	"montecarlo/engine"
	"montecarlo/experiments"
	"montecarlo/game"
	"montecarlo/searcher"
)

func main() {
	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Debug().Msgf("Loaded config: %+v", *cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("montecarlo failed")
	}
	log.Info().Msg("bye")
}

func run(ctx context.Context, cfg *config.Config) error {
	rules, start, err := setup(cfg)
	if err != nil {
		return err
	}
	policy, err := engine.ParseReplyPolicy(cfg.ReplyPolicy)
	if err != nil {
		return err
	}
	treeOptions := []searcher.Option{searcher.WithExploration(cfg.Exploration)}
	if cfg.Seed != 0 {
		treeOptions = append(treeOptions, searcher.WithSeed(cfg.Seed))
	}
	options := []engine.Option{
		engine.WithSearchTime(cfg.SearchTime),
		engine.WithReplyPolicy(policy),
		engine.WithTreeOptions(treeOptions...),
	}

	if cfg.Listen != "" {
		c := engine.NewController(rules, start, options...)
		if f, err := os.Open(cfg.TreePath); err == nil {
			err = c.Load(f)
			f.Close()
			if err != nil {
				return err
			}
		}
		return agent.ListenAndServe(cfg.Listen, c)
	}

	engineSide, err := game.ParseSide(cfg.EngineSide)
	if err != nil {
		return err
	}
	sp := experiments.SelfPlay{
		Rules:             rules,
		Start:             start,
		Games:             cfg.Games,
		EngineSide:        engineSide,
		MaxTurns:          cfg.MaxTurns,
		TreePath:          cfg.TreePath,
		ControllerOptions: options,
		NewOpponent: func(i int) engine.Opponent {
			seed := cfg.Seed
			if seed != 0 {
				seed += uint64(i)
			}
			return engine.NewRandomOpponent(rules, seed)
		},
	}
	gameRecords, moveRecords, runErr := sp.Run(ctx)

	if cfg.MetricsDir != "" && len(gameRecords) > 0 {
		dir, err := experiments.WriteRecords(cfg.MetricsDir, gameRecords, moveRecords)
		if err != nil {
			return err
		}
		log.Info().Str("dir", dir).Msg("stored metrics")
	}
	return runErr
}

func setup(cfg *config.Config) (game.Rules, game.Position, error) {
	var rules game.Rules
	text := cfg.StartPosition
	switch cfg.Game {
	case "chess":
		rules = game.NewChess()
		if text == "" {
			text = game.StartingFEN
		}
	case "nim":
		rules = game.NewNim()
		if text == "" {
			text = string(game.NimPosition(21, game.White))
		}
	default:
		return nil, "", fmt.Errorf("unknown game %q", cfg.Game)
	}
	start, err := rules.ParsePosition(text)
	if err != nil {
		return nil, "", fmt.Errorf("start position: %w", err)
	}
	return rules, start, nil
}
