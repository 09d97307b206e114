package experiments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"montecarlo/engine"
	"montecarlo/experiments/metrics"
	"montecarlo/game"
)

// SelfPlay plays a series of local games against fresh opponents. When
// TreePath is set the search tree is loaded before and saved after every
// game, so later games start from what earlier ones learned.
type SelfPlay struct {
	Rules             game.Rules
	Start             game.Position
	Games             int
	EngineSide        game.Side
	MaxTurns          int
	TreePath          string
	ControllerOptions []engine.Option
	NewOpponent       func(game int) engine.Opponent
}

func (sp SelfPlay) Run(ctx context.Context) ([]metrics.GameRecord, []metrics.MoveRecord, error) {
	gameRecords := []metrics.GameRecord{}
	moveRecords := []metrics.MoveRecord{}

	log.Info().Msgf("starting %d games with the engine as %s...", sp.Games, sp.EngineSide)

	for i := 1; i <= sp.Games; i++ {
		log.Info().Msgf("starting game %d of %d...", i, sp.Games)

		c := engine.NewController(sp.Rules, sp.Start, sp.ControllerOptions...)
		if err := sp.loadTree(c); err != nil {
			return gameRecords, moveRecords, err
		}
		local := engine.NewLocal(c, sp.NewOpponent(i), sp.EngineSide)
		if sp.MaxTurns > 0 {
			local.MaxTurns = sp.MaxTurns
		}

		gameMetric, moveMetrics, err := local.Run(ctx)
		gameRecords = append(gameRecords, metrics.GameRecord{
			ID:         i,
			GameMetric: gameMetric,
		})
		for _, mm := range moveMetrics {
			moveRecords = append(moveRecords, metrics.MoveRecord{
				Game:       i,
				MoveMetric: mm,
			})
		}
		if err != nil {
			return gameRecords, moveRecords, fmt.Errorf("game %d: %w", i, err)
		}
		if err := sp.saveTree(c); err != nil {
			return gameRecords, moveRecords, err
		}

		log.Info().Msgf("completed game %d of %d with outcome: %s", i, sp.Games, gameMetric.Outcome)
	}

	log.Info().Msg("completed self-play")
	return gameRecords, moveRecords, nil
}

func (sp SelfPlay) loadTree(c *engine.Controller) error {
	if sp.TreePath == "" {
		return nil
	}
	f, err := os.Open(sp.TreePath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", sp.TreePath).Msg("no saved tree, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open tree: %w", err)
	}
	defer f.Close()

	if err := c.Load(f); err != nil {
		return err
	}
	if root := c.Tree().Root().Position(); root != sp.Start {
		return fmt.Errorf("saved tree starts from %q, not %q", root, sp.Start)
	}
	return nil
}

// saveTree writes to a temporary file first so a failed save leaves the
// previous tree in place.
func (sp SelfPlay) saveTree(c *engine.Controller) error {
	if sp.TreePath == "" {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(sp.TreePath), filepath.Base(sp.TreePath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create tree file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}
	if err := os.Rename(tmp.Name(), sp.TreePath); err != nil {
		return fmt.Errorf("failed to replace tree: %w", err)
	}
	log.Info().Str("path", sp.TreePath).Int("sims", c.Tree().Root().Sims()).Msg("stored tree")
	return nil
}

// WriteRecords stores the records under a timestamped folder of dir and
// returns that folder.
func WriteRecords(dir string, gameRecords []metrics.GameRecord, moveRecords []metrics.MoveRecord) (string, error) {
	writer, err := metrics.NewWriter(dir)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}
	if err := writer.WriteGameRecords(gameRecords); err != nil {
		return "", fmt.Errorf("failed to write game records: %w", err)
	}
	log.Info().Msg("stored game records")
	if err := writer.WriteMoveRecords(moveRecords); err != nil {
		return "", fmt.Errorf("failed to write move records: %w", err)
	}
	log.Info().Msg("stored move records")
	return writer.Dir(), nil
}
