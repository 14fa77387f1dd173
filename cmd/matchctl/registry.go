// cmd/matchctl/registry.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"caregiver-matching/pkg/registry"

	"github.com/spf13/cobra"
)

var (
	registryFile string
	registryName string

	registryCmd = &cobra.Command{
		Use:   "registry",
		Short: "Inspect or change the active model entry",
	}

	registryShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the active model entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(func(store registry.Store) error {
				return showEntry(cmd.Context(), store, cmd.OutOrStdout())
			})
		},
	}

	registryDisableCmd = &cobra.Command{
		Use:   "disable-ml",
		Short: "Keep the entry but score with the heuristic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(func(store registry.Store) error {
				return setML(cmd.Context(), store, false, cmd.OutOrStdout())
			})
		},
	}

	registryEnableCmd = &cobra.Command{
		Use:   "enable-ml",
		Short: "Score with the registered model again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(func(store registry.Store) error {
				return setML(cmd.Context(), store, true, cmd.OutOrStdout())
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryShowCmd, registryDisableCmd, registryEnableCmd)

	registryCmd.PersistentFlags().StringVar(&registryFile, "file", "", "use a JSON registry file instead of Postgres")
	registryCmd.PersistentFlags().StringVar(&registryName, "name", registry.DefaultName, "registry entry name")
}

// withRegistry opens the file store when --file is set, otherwise the Postgres store from config.
func withRegistry(fn func(registry.Store) error) error {
	if registryFile != "" {
		return fn(registry.NewFileStore(registryFile))
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pg, err := openPostgres(cfg)
	if err != nil {
		return err
	}
	defer pg.Close()
	return fn(registry.NewPostgresStore(pg.GetDB(), registryName))
}

func showEntry(ctx context.Context, store registry.Store, w io.Writer) error {
	entry, err := store.Get(ctx)
	if errors.Is(err, registry.ErrNotFound) {
		fmt.Fprintln(w, "no model registered; scoring uses the heuristic")
		return nil
	}
	if err != nil {
		return err
	}
	return printEntry(w, entry)
}

func setML(ctx context.Context, store registry.Store, enabled bool, w io.Writer) error {
	entry, err := registry.SetMLEnabled(ctx, store, enabled)
	if err != nil {
		return err
	}
	return printEntry(w, entry)
}

func printEntry(w io.Writer, entry *registry.ModelEntry) error {
	out, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
