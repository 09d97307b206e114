package config

import (
	"fmt"
	"math"
	"time"

	"github.com/namsral/flag"
)

// EnvPrefix prefixes the environment variable of every flag, so -search-time
// can also be set with MONTECARLO_SEARCH_TIME.
const EnvPrefix = "MONTECARLO"

type Config struct {
	SearchTime    time.Duration
	Exploration   float64
	Game          string
	StartPosition string
	TreePath      string
	ReplyPolicy   string
	EngineSide    string
	Games         int
	MaxTurns      int
	Seed          uint64
	MetricsDir    string
	Listen        string
	Debug         bool
}

// Load reads flags from args, then the environment, then the file named by
// -config, in that order of precedence.
func (c *Config) Load(args []string) error {
	fs := flag.NewFlagSetWithEnvPrefix("montecarlo", EnvPrefix, flag.ContinueOnError)
	fs.String(flag.DefaultConfigFlagname, "", "path to a config file of flag-name value lines")
	fs.DurationVar(&c.SearchTime, "search-time", 5*time.Second, "wall-clock budget for each engine move")
	fs.Float64Var(&c.Exploration, "exploration", math.Sqrt2, "UCB1 exploration constant")
	fs.StringVar(&c.Game, "game", "chess", "rules to play: chess or nim")
	fs.StringVar(&c.StartPosition, "start-position", "", "starting position, a FEN for chess or pile:side for nim; empty for the standard start")
	fs.StringVar(&c.TreePath, "tree-path", "saved_tree.json", "file the search tree is loaded from and saved to; empty to disable")
	fs.StringVar(&c.ReplyPolicy, "reply-policy", "explore", "how the engine picks its reply: explore or exploit")
	fs.StringVar(&c.EngineSide, "engine-side", "B", "side the engine plays in self-play games: W or B")
	fs.IntVar(&c.Games, "games", 1, "number of games to play against the random opponent")
	fs.IntVar(&c.MaxTurns, "max-turns", 500, "plies after which a game is abandoned")
	fs.Uint64Var(&c.Seed, "seed", 0, "random seed; 0 picks one")
	fs.StringVar(&c.MetricsDir, "metrics-dir", "", "directory for game and move CSV records; empty to disable")
	fs.StringVar(&c.Listen, "listen", "", "serve the agent HTTP API on this address instead of playing")
	fs.BoolVar(&c.Debug, "debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	switch {
	case c.SearchTime <= 0:
		return fmt.Errorf("search-time must be positive, got %s", c.SearchTime)
	case c.Exploration < 0 || math.IsNaN(c.Exploration):
		return fmt.Errorf("exploration must be nonnegative, got %v", c.Exploration)
	case c.Game != "chess" && c.Game != "nim":
		return fmt.Errorf("unknown game %q", c.Game)
	case c.Games < 0:
		return fmt.Errorf("games must be nonnegative, got %d", c.Games)
	case c.MaxTurns <= 0:
		return fmt.Errorf("max-turns must be positive, got %d", c.MaxTurns)
	}
	return nil
}
