package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/google/uuid"
)

func nameIndex(players []scheduler.Player) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(players))
	for _, p := range players {
		out[p.ID] = p.Name
	}
	return out
}

func teamNames(names map[uuid.UUID]string, ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = names[id]
	}
	return strings.Join(parts, " & ")
}

func printSchedule(w io.Writer, sched *scheduler.Schedule, players []scheduler.Player) {
	names := nameIndex(players)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for r := 0; r < sched.RoundCount(); r++ {
		round := sched.Round(r)
		fmt.Fprintf(tw, "Round %d\t%s\t\t\n", r+1, round.Style)
		for _, m := range round.Matches {
			if m.Status == scheduler.StatusRejected {
				continue
			}
			fmt.Fprintf(tw, "  #%d\t%s\tvs %s\t%+.0f\n", m.Number, teamNames(names, m.Team1), teamNames(names, m.Team2), m.Balance)
		}
		if len(round.Waitlist) > 0 {
			fmt.Fprintf(tw, "  waiting\t%s\t\t\n", teamNames(names, round.Waitlist))
		}
	}
}

func printReport(w io.Writer, report *scheduler.Report, players []scheduler.Player) {
	names := nameIndex(players)

	fmt.Fprintf(w, "%d matches in %d rounds, games %d..%d, mean balance %.1f, %.0f%% positive\n",
		report.Matches, report.Rounds, report.MinGames, report.MaxGames,
		report.MeanBalance, 100*report.PositiveBalance)

	if len(report.Violations) == 0 {
		fmt.Fprintln(w, "no violations")
	} else {
		fmt.Fprintf(w, "%d violations:\n", len(report.Violations))
		for _, v := range report.Violations {
			where := ""
			if v.Round >= 0 {
				where = fmt.Sprintf(" in round %d", v.Round+1)
			}
			fmt.Fprintf(w, "  %s %s x%d%s\n", v.Kind, teamNames(names, v.Players), v.Count, where)
		}
	}

	short := make([]scheduler.Player, 0)
	for _, p := range players {
		if report.Games[p.ID] < report.MaxGames {
			short = append(short, p)
		}
	}
	if len(short) > 0 && report.MaxGames > report.MinGames {
		sort.SliceStable(short, func(i, j int) bool { return report.Games[short[i].ID] < report.Games[short[j].ID] })
		parts := make([]string, len(short))
		for i, p := range short {
			parts[i] = fmt.Sprintf("%s %d", p.Name, report.Games[p.ID])
		}
		fmt.Fprintf(w, "below max: %s\n", strings.Join(parts, ", "))
	}
}
