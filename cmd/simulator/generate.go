package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dom/court-rotation/internal/exchange"
	"github.com/dom/court-rotation/internal/scheduler"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type generateOptions struct {
	rosterFile string
	players    int
	skillLo    float64
	skillHi    float64
	courts     int
	target     int
	maxOpp     int
	maxPart    int
	maxRounds  int
	seed       int64
	seeds      int
	parallel   int
	out        string
	quiet      bool
}

func generateCmd() *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a schedule locally and print it",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`
			generate runs the scheduler in process. The roster comes from
			--roster, a JSON array of {"name", "skill"} objects, or is
			synthesized with --players evenly spread skills.

			With --seeds greater than one, that many consecutive seeds are
			tried in parallel and the schedule with the best validation
			quality is kept.
		`),
		Example: heredoc.Doc(`
			# 16 players, 4 courts, 8 games each
			$ simulator generate --players 16 --courts 4 --target 8

			# best of 12 seeds from a roster file, exported for import
			$ simulator generate --roster club.json --seeds 12 --out schedule.json
		`),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.rosterFile, "roster", "", "Roster JSON file")
	flags.IntVar(&opts.players, "players", 16, "Synthetic roster size")
	flags.Float64Var(&opts.skillLo, "skill-min", 2.5, "Lowest synthetic skill")
	flags.Float64Var(&opts.skillHi, "skill-max", 4.75, "Highest synthetic skill")
	flags.IntVar(&opts.courts, "courts", 4, "Courts available per round")
	flags.IntVar(&opts.target, "target", scheduler.DefaultTargetGames, "Games per player")
	flags.IntVar(&opts.maxOpp, "max-opponent", scheduler.DefaultMaxOpponentRepeats, "Times two players may face each other")
	flags.IntVar(&opts.maxPart, "max-partner", 0, "Extra times two players may partner")
	flags.IntVar(&opts.maxRounds, "max-rounds", 0, "Round cap, 0 derives one from the target")
	flags.Int64Var(&opts.seed, "seed", 1, "First seed")
	flags.IntVar(&opts.seeds, "seeds", 1, "Number of seeds to try")
	flags.IntVar(&opts.parallel, "parallel", runtime.NumCPU(), "Seeds generated at once")
	flags.StringVar(&opts.out, "out", "", "Write the export document to this file")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Print only the summary line")

	return cmd
}

func runGenerate(ctx context.Context, opts generateOptions) error {
	if opts.seeds < 1 {
		return fmt.Errorf("--seeds must be at least 1")
	}

	var entries []rosterEntry
	if opts.rosterFile != "" {
		var err error
		if entries, err = loadRoster(opts.rosterFile); err != nil {
			return err
		}
	} else {
		entries = syntheticRoster(opts.players, opts.skillLo, opts.skillHi, opts.seed)
	}
	players, err := toPlayers(entries)
	if err != nil {
		return err
	}

	cfg := scheduler.DefaultConfig()
	cfg.Courts = opts.courts
	cfg.TargetGames = opts.target
	cfg.MaxOpponentRepeats = opts.maxOpp
	cfg.MaxPartnerRepeats = opts.maxPart
	cfg.MaxRounds = opts.maxRounds

	seeds := make([]int64, opts.seeds)
	for i := range seeds {
		seeds[i] = opts.seed + int64(i)
	}

	best, err := bestOfSeeds(ctx, cfg, players, seeds, opts.parallel)
	if err != nil {
		return err
	}
	cfg.Seed = best.seed

	if !opts.quiet {
		printSchedule(os.Stdout, best.sched, players)
		fmt.Println()
	}
	printReport(os.Stdout, &best.report, players)
	fmt.Printf("seed %d (best of %d)\n", best.seed, len(seeds))

	if opts.out != "" {
		data, err := exchange.Export(cfg, players, best.sched)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.out, data, 0o644); err != nil {
			return err
		}
		log.Infof("wrote %s", opts.out)
	}
	return nil
}

type seedResult struct {
	seed   int64
	sched  *scheduler.Schedule
	report scheduler.Report
}

// bestOfSeeds generates one schedule per seed, at most parallel at a time,
// and keeps the one with the highest quality. Ties go to the earlier seed.
func bestOfSeeds(ctx context.Context, cfg scheduler.Config, players []scheduler.Player, seeds []int64, parallel int) (*seedResult, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seeds")
	}
	if parallel < 1 {
		parallel = 1
	}

	results := make([]*seedResult, len(seeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c := cfg
			c.Seed = seed
			sched, err := scheduler.Generate(c, players)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = &seedResult{seed: seed, sched: sched, report: scheduler.Validate(c, sched.Matches)}
			log.WithField("seed", seed).Debugf("quality %.1f", results[i].report.Quality())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.report.Quality() > best.report.Quality() {
			best = r
		}
	}
	return best, nil
}
