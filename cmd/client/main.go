// cmd/client is the CLI client built with Cobra.
//
// Usage:
//
//	adpreplic-cli create mykey "hello world" --server http://localhost:8080
//	adpreplic-cli get mykey                  --server http://localhost:8080
//	adpreplic-cli update mykey "new value"    --server http://localhost:8080
//	adpreplic-cli delete mykey                --server http://localhost:8080
//	adpreplic-cli health                      --server http://localhost:8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"adaptive-replication/internal/client"

	"github.com/spf13/cobra"
)

var (
	serverAddr   string
	timeout      time.Duration
	strategyTag  string
	minDCsNumber int
)

func main() {
	root := &cobra.Command{
		Use:   "adpreplic-cli",
		Short: "CLI client for the adaptive replication engine",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "node address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(createCmd(), getCmd(), updateCmd(), deleteCmd(), healthCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── create ──────────────────────────────────────────────────────────────────

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <key> <value>",
		Short: "Create a new key, seeding replicas on min-dcs DCs; other DCs acquire it on demand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			var params *client.StrategyParams
			if minDCsNumber > 0 {
				params = &client.StrategyParams{MinDCsNumber: minDCsNumber}
			}
			resp, err := c.Create(context.Background(), args[0], args[1], strategyTag, params)
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&strategyTag, "strategy", "", "strategy tag (defaults to the node's default)")
	cmd.Flags().IntVar(&minDCsNumber, "min-dcs", 0, "minimum DCs to seed at creation (0 = node default)")
	return cmd
}

// ─── get ──────────────────────────────────────────────────────────────────────

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Get(context.Background(), args[0])
			if err == client.ErrNotFound {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── update ──────────────────────────────────────────────────────────────────

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <key> <value>",
		Short: "Overwrite an existing key's value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			if err := c.Update(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("updated %q\n", args[0])
			return nil
		},
	}
}

// ─── delete ───────────────────────────────────────────────────────────────────

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Evict this node's local replica of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			if err := c.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %q\n", args[0])
			return nil
		},
	}
}

// ─── health ───────────────────────────────────────────────────────────────────

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check node health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.GetRaw(context.Background(), "/health")
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
