package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chitchi46/lectureqa/internal/llm"
	"github.com/chitchi46/lectureqa/internal/store"
	"github.com/chitchi46/lectureqa/internal/ui/theme"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect model request/response events",
	Long: "Every completion and embedding call is recorded with its purpose " +
		"(" + strings.Join([]string{llm.PurposeQAGen, llm.PurposeEmbed, llm.PurposeQuery}, ", ") + "), " +
		"token counts and latency.",
}

// withStore opens the database named by --db for the duration of fn.
func withStore(cmd *cobra.Command, fn func(store.EventRepo) error) error {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()
	return fn(s.EventRepo())
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent model events",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := store.QueryOpts{}
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.Purpose, _ = cmd.Flags().GetString("purpose")
		if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
			opts.From = time.Now().Add(-since)
		}

		return withStore(cmd, func(events store.EventRepo) error {
			rows, err := events.QueryLLMEvents(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}
			if len(rows) == 0 {
				fmt.Println("No model events found.")
				return nil
			}

			p := theme.NewPainter(os.Stdout)
			fmt.Printf("%-5s  %-19s  %-11s  %-10s  %-26s  %6s  %6s  %6s  %s\n",
				"ID", "Timestamp", "Purpose", "Provider", "Model", "In", "Out", "Ms", "OK")
			fmt.Println(strings.Repeat("─", 108))

			for _, e := range rows {
				ok := p.Render(theme.Correct, "✓")
				if !e.Success {
					ok = p.Render(theme.Incorrect, "✗")
				}
				fmt.Printf("%-5d  %-19s  %-11s  %-10s  %-26s  %6d  %6d  %6d  %s\n",
					e.ID, e.Timestamp.Local().Format(time.DateTime), e.Purpose,
					truncate(e.Provider, 10), truncate(e.Model, 26),
					e.InputTokens, e.OutputTokens, e.LatencyMs, ok)
			}
			return nil
		})
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the full request and response of one event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		return withStore(cmd, func(events store.EventRepo) error {
			e, err := events.GetLLMEvent(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get event: %w", err)
			}
			if e == nil {
				return fmt.Errorf("event %d not found", id)
			}

			p := theme.NewPainter(os.Stdout)
			field := func(name, value string) {
				fmt.Printf("%s %s\n", p.Render(theme.Label, fmt.Sprintf("%-10s", name+":")), value)
			}
			field("ID", strconv.Itoa(e.ID))
			field("Time", e.Timestamp.Local().Format(time.DateTime))
			field("Provider", e.Provider)
			field("Model", e.Model)
			field("Purpose", e.Purpose)
			field("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens))
			field("Latency", fmt.Sprintf("%dms", e.LatencyMs))
			if e.Success {
				field("Result", p.Render(theme.Correct, "success"))
			} else {
				field("Result", p.Render(theme.Incorrect, "failed: "+e.ErrorMessage))
			}

			section := func(title, body string) {
				fmt.Println()
				fmt.Println(p.Render(theme.Title, title))
				if body == "" {
					body = p.Render(theme.Hint, "(not captured)")
				}
				fmt.Println(body)
			}
			section("Request", e.RequestBody)
			section("Response", e.ResponseBody)
			return nil
		})
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage by purpose and estimated cost by model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(events store.EventRepo) error {
			ctx := cmd.Context()
			byPurpose, err := events.LLMUsageByPurpose(ctx)
			if err != nil {
				return fmt.Errorf("query usage: %w", err)
			}
			if len(byPurpose) == 0 {
				fmt.Println("No model usage recorded yet.")
				return nil
			}

			rule := strings.Repeat("─", 72)
			fmt.Println("Usage by purpose")
			fmt.Println(rule)
			fmt.Printf("%-16s  %6s  %10s  %10s  %10s  %8s\n", "Purpose", "Calls", "Input", "Output", "Total", "Avg ms")
			fmt.Println(rule)

			var sum store.LLMUsage
			for _, u := range byPurpose {
				fmt.Printf("%-16s  %6d  %10d  %10d  %10d  %8d\n",
					u.Purpose, u.Calls, u.InputTokens, u.OutputTokens, u.InputTokens+u.OutputTokens, u.AvgLatencyMs)
				sum.Calls += u.Calls
				sum.InputTokens += u.InputTokens
				sum.OutputTokens += u.OutputTokens
			}
			fmt.Println(rule)
			fmt.Printf("%-16s  %6d  %10d  %10d  %10d\n",
				"TOTAL", sum.Calls, sum.InputTokens, sum.OutputTokens, sum.InputTokens+sum.OutputTokens)

			byModel, err := events.LLMUsageByModel(ctx)
			if err != nil {
				return fmt.Errorf("query model usage: %w", err)
			}
			if len(byModel) == 0 {
				return nil
			}

			fmt.Println()
			fmt.Println("Estimated cost (USD)")
			fmt.Println(rule)
			fmt.Printf("%-32s  %6s  %10s  %10s  %9s\n", "Model", "Calls", "Input", "Output", "Cost")
			fmt.Println(rule)

			var total float64
			var unpriced []string
			for _, u := range byModel {
				cost := "?"
				if c := llm.LookupCost(u.Model); c != nil {
					usd := c.Cost(u.InputTokens, u.OutputTokens)
					total += usd
					cost = formatCost(usd)
				} else {
					unpriced = append(unpriced, u.Model)
				}
				fmt.Printf("%-32s  %6d  %10d  %10d  %9s\n",
					truncate(u.Model, 32), u.Calls, u.InputTokens, u.OutputTokens, cost)
			}
			fmt.Println(rule)

			label := "TOTAL"
			if len(unpriced) > 0 {
				label = "TOTAL (partial)"
			}
			fmt.Printf("%-32s  %6s  %10s  %10s  %9s\n", label, "", "", "", formatCost(total))
			if len(unpriced) > 0 {
				fmt.Printf("\nNo pricing for: %s\n", strings.Join(unpriced, ", "))
			}
			return nil
		})
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Only show events with this purpose")
	llmListCmd.Flags().Duration("since", 0, "Only show events newer than this (e.g. 2h)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
