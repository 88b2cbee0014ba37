package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// parseTier maps a --tier value to a filter; empty and "all" mean every tier.
func parseTier(value string) (*domain.Priority, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "all") {
		return nil, nil
	}
	p, err := domain.ParsePriority(value)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func renderCycleSummary(s *domain.CycleSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle %s (tier %s)\n", s.ID, s.Tier)
	fmt.Fprintf(&b, "Started %s, took %s\n", s.StartedAt.Format(time.RFC3339), s.Duration().Round(time.Millisecond))
	if s.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", s.Error)
	}
	b.WriteString("\n")

	creators := make([]string, 0, len(s.Processed))
	for id := range s.Processed {
		creators = append(creators, id)
	}
	sort.Strings(creators)

	rows := make([][]string, 0, len(creators)+1)
	for _, id := range creators {
		rows = append(rows, []string{id, strconv.Itoa(s.Processed[id])})
	}
	rows = append(rows, []string{"total", strconv.Itoa(s.Total)})
	b.WriteString(renderTable([]string{"Creator", "Routed"}, rows, []columnAlignment{alignLeft, alignRight}))
	b.WriteString("\n")

	if len(s.Items) > 0 {
		rows = rows[:0]
		for _, it := range s.Items {
			score := ""
			if it.Score != nil {
				score = strconv.Itoa(*it.Score)
			}
			rows = append(rows, []string{
				it.CreatorID,
				it.ItemID,
				string(it.Outcome),
				string(it.State),
				score,
				strconv.Itoa(len(it.Files)),
			})
		}
		b.WriteString("\n")
		b.WriteString(renderTable(
			[]string{"Creator", "Item", "Outcome", "State", "Score", "Files"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		))
		b.WriteString("\n")
	}

	if len(s.Written) > 0 {
		b.WriteString("\nWritten:\n")
		for _, p := range s.Written {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	return b.String()
}

func renderCreators(creators []domain.Creator) string {
	rows := make([][]string, 0, len(creators))
	for _, c := range creators {
		maxItems := "-"
		if c.MaxItemsPerScan > 0 {
			maxItems = strconv.Itoa(c.MaxItemsPerScan)
		}
		rows = append(rows, []string{c.ID, c.Name(), string(c.Priority), c.Channel(), c.Focus, maxItems})
	}
	return renderTable(
		[]string{"ID", "Name", "Tier", "Channel", "Focus", "Max Items"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func renderHistory(cycles []*domain.CycleSummary) string {
	rows := make([][]string, 0, len(cycles))
	for _, s := range cycles {
		status := "ok"
		switch {
		case s.Error != "":
			status = "failed"
		case s.FinishedAt.IsZero():
			status = "running"
		}
		rows = append(rows, []string{
			s.ID,
			s.Tier,
			s.StartedAt.Format(time.RFC3339),
			s.Duration().Round(time.Second).String(),
			strconv.Itoa(s.Total),
			strconv.Itoa(len(s.Written)),
			status,
		})
	}
	return renderTable(
		[]string{"Cycle", "Tier", "Started", "Took", "Routed", "Files", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}
