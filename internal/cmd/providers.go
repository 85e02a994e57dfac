package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/adlift/adlift/pkg/storage/factory"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List storage providers and their configuration state",
	RunE:  runProviders,
}

var storageInfoCmd = &cobra.Command{
	Use:   "storage",
	Short: "Show the active storage backend (credentials redacted)",
	RunE:  runStorageInfo,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(storageInfoCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	ready := factory.Probe(appConfig.Storage)
	out := cmd.OutOrStdout()
	for _, name := range factory.Providers {
		state := "not configured"
		if ready[name] {
			state = "configured"
		}
		marker := " "
		if name == appConfig.Storage.Provider {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-6s %s\n", marker, name, state)
	}
	return nil
}

func runStorageInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := newBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	info := backend.Describe()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "provider: %s\n", info.Provider)
	keys := make([]string, 0, len(info.Settings))
	for k := range info.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %s\n", k, info.Settings[k])
	}
	return nil
}
