package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clawinfra/clawroute/internal/auth"
	"github.com/clawinfra/clawroute/internal/store"
)

const defaultProxyURL = "http://127.0.0.1:8787"

func addClientFlags(cmd *cobra.Command, url, token *string) {
	cmd.Flags().StringVar(url, "url", defaultProxyURL, "proxy base URL")
	cmd.Flags().StringVar(token, "token", "", "admin token (defaults to CLAWROUTE_TOKEN)")
}

func newStatsCmd() *cobra.Command {
	var url, token string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show routing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats store.Stats
			if err := newAdminClient(url, token).do(http.MethodGet, "/stats", nil, &stats); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Requests\t%d\n", stats.TotalRequests)
			fmt.Fprintf(w, "Escalations\t%d\n", stats.Escalations)
			fmt.Fprintf(w, "Savings (USD)\t%.4f\n", stats.TotalSavingsUSD)
			fmt.Fprintf(w, "Input tokens\t%d\n", stats.TotalInputTokens)
			fmt.Fprintf(w, "Output tokens\t%d\n", stats.TotalOutputTokens)
			fmt.Fprintf(w, "Avg response (ms)\t%.0f\n", stats.AvgResponseMs)
			if err := w.Flush(); err != nil {
				return err
			}

			if len(stats.ByTier) > 0 {
				fmt.Println()
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIER\tREQUESTS\tSAVINGS (USD)")
				for _, tier := range []string{"heartbeat", "simple", "moderate", "complex", "frontier"} {
					if ts, ok := stats.ByTier[tier]; ok {
						fmt.Fprintf(tw, "%s\t%d\t%.4f\n", tier, ts.Requests, ts.SavingsUSD)
					}
				}
				return tw.Flush()
			}
			return nil
		},
	}
	addClientFlags(cmd, &url, &token)
	return cmd
}

func newEnableCmd() *cobra.Command {
	var url, token string
	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable routing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAdminClient(url, token).do(http.MethodPost, "/api/enable", nil, nil); err != nil {
				return err
			}
			fmt.Println("routing enabled")
			return nil
		},
	}
	addClientFlags(cmd, &url, &token)
	return cmd
}

func newDisableCmd() *cobra.Command {
	var url, token string
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable routing (pass everything through)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAdminClient(url, token).do(http.MethodPost, "/api/disable", nil, nil); err != nil {
				return err
			}
			fmt.Println("routing disabled")
			return nil
		},
	}
	addClientFlags(cmd, &url, &token)
	return cmd
}

func newDryRunCmd() *cobra.Command {
	var url, token string
	cmd := &cobra.Command{
		Use:       "dry-run {on|off}",
		Short:     "Toggle dry-run mode (classify and log, but do not reroute)",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/dry-run/enable"
			if args[0] == "off" {
				path = "/api/dry-run/disable"
			}
			if err := newAdminClient(url, token).do(http.MethodPost, path, nil, nil); err != nil {
				return err
			}
			fmt.Printf("dry-run %s\n", args[0])
			return nil
		},
	}
	addClientFlags(cmd, &url, &token)
	return cmd
}

func newOverrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage model overrides",
	}
	cmd.AddCommand(newOverrideSetCmd(), newOverrideClearCmd(), newOverrideSessionCmd())
	return cmd
}

func newOverrideSetCmd() *cobra.Command {
	var url, token string
	cmd := &cobra.Command{
		Use:   "set <model>",
		Short: "Force every request to one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"model": args[0]}
			if err := newAdminClient(url, token).do(http.MethodPost, "/api/override/global", body, nil); err != nil {
				return err
			}
			fmt.Printf("global override set to %s\n", args[0])
			return nil
		},
	}
	addClientFlags(cmd, &url, &token)
	return cmd
}

func newOverrideClearCmd() *cobra.Command {
	var url, token string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the global override",
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := false
			body := map[string]any{"enabled": &enabled}
			if err := newAdminClient(url, token).do(http.MethodPost, "/api/override/global", body, nil); err != nil {
				return err
			}
			fmt.Println("global override cleared")
			return nil
		},
	}
	addClientFlags(cmd, &url, &token)
	return cmd
}

func newOverrideSessionCmd() *cobra.Command {
	var url, token string
	var turns int
	var remove bool
	cmd := &cobra.Command{
		Use:   "session <session-id> [model]",
		Short: "Pin or unpin a session to a model",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAdminClient(url, token)
			if remove {
				return c.do(http.MethodDelete, "/api/override/session", map[string]any{"sessionId": args[0]}, nil)
			}
			if len(args) < 2 {
				return fmt.Errorf("model is required unless --remove is set")
			}
			body := map[string]any{"sessionId": args[0], "model": args[1]}
			if turns > 0 {
				body["turns"] = turns
			}
			if err := c.do(http.MethodPost, "/api/override/session", body, nil); err != nil {
				return err
			}
			fmt.Printf("session %s pinned to %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().IntVar(&turns, "turns", 0, "number of turns the override lasts (0 = unlimited)")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the session override")
	addClientFlags(cmd, &url, &token)
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the proxy auth token",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Generate a new auth token for CLAWROUTE_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	})
	return cmd
}
