package main

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

func fullCmd() *cobra.Command {
	var (
		players  int
		courts   int
		target   int
		seed     int64
		approve  int
		rosterIn string
	)

	cmd := &cobra.Command{
		Use:   "full",
		Short: "Create an event on a running server and generate its schedule",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`
			full registers a throwaway operator, creates an event with a
			synthetic (or --roster) player list, generates the schedule and
			prints it with the server's validation summary. The printed
			short code can be opened in the web UI.
		`),
		Example: heredoc.Doc(`
			$ simulator full --players 10 --courts 2
			$ API_URL=http://staging:8080 simulator full --approve 4
		`),

		RunE: func(cmd *cobra.Command, args []string) error {
			apiURL, _ := cmd.Flags().GetString("api")
			client := NewAPIClient(apiURL)

			roster := syntheticRoster(players, 2.5, 4.75, seed)
			if rosterIn != "" {
				var err error
				if roster, err = loadRoster(rosterIn); err != nil {
					return err
				}
			}

			fmt.Println("=== Court Rotation Simulator: Full Flow ===")
			fmt.Println()

			fmt.Print("Creating operator... ")
			user, token, err := client.RegisterUser("Operator")
			if err != nil {
				fmt.Println("FAILED")
				return err
			}
			fmt.Printf("OK (user: %s)\n", user.DisplayName)

			fmt.Print("Creating event... ")
			event, err := client.CreateEvent(token, "Simulated session", courts, target, seed, roster)
			if err != nil {
				fmt.Println("FAILED")
				return err
			}
			fmt.Printf("OK (code: %s, %d players)\n", event.ShortCode, len(roster))

			fmt.Print("Generating schedule... ")
			sched, err := client.GenerateSchedule(token, event.ID)
			if err != nil {
				fmt.Println("FAILED")
				return err
			}
			fmt.Printf("OK (%d matches, %d rounds)\n\n", sched.Matches, len(sched.Rounds))

			for _, round := range sched.Rounds {
				fmt.Printf("Round %d (%s)\n", round.Index+1, round.Style)
				for _, m := range round.Matches {
					fmt.Printf("  #%-3d %s  vs  %s  (%+.0f)\n", m.Number, refNames(m.Team1), refNames(m.Team2), m.Balance)
				}
				if len(round.Waitlist) > 0 {
					fmt.Printf("  waiting: %s\n", refNames(round.Waitlist))
				}
			}

			approved := 0
			for _, round := range sched.Rounds {
				for _, m := range round.Matches {
					if approved >= approve {
						break
					}
					if err := client.ApproveMatch(token, event.ID, m.ID); err != nil {
						return err
					}
					approved++
				}
			}
			if approved > 0 {
				fmt.Printf("\nApproved %d matches\n", approved)
			}

			report, err := client.GetValidation(event.ID)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Printf("Games per player %d..%d, mean balance %.1f, %.0f%% positive, %d violations\n",
				report.MinGames, report.MaxGames, report.MeanBalance, 100*report.PositiveBalance, len(report.Violations))
			fmt.Printf("Event code: %s\n", event.ShortCode)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&players, "players", 16, "Synthetic roster size")
	flags.IntVar(&courts, "courts", 4, "Courts available per round")
	flags.IntVar(&target, "target", 8, "Games per player")
	flags.Int64Var(&seed, "seed", 1, "Scheduler seed")
	flags.IntVar(&approve, "approve", 0, "Approve this many matches from the start")
	flags.StringVar(&rosterIn, "roster", "", "Roster JSON file instead of a synthetic roster")

	return cmd
}

func refNames(refs []PlayerRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.Name
	}
	return strings.Join(parts, " & ")
}
