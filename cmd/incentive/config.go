package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iwell/incentive-engine/internal/config"
	"github.com/iwell/incentive-engine/internal/model"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage scorer rule tables",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configResetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a scorer's validated config document and hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scorer, _ := cmd.Flags().GetString("scorer")
			if !model.KnownScorer(scorer) {
				return fmt.Errorf("unknown scorer %q", scorer)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			snap, err := config.NewLoader(store, slog.Default()).Load(ctx, scorer)
			if err != nil {
				return err
			}

			pretty, err := json.MarshalIndent(snap.Doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format document: %w", err)
			}
			cmd.Printf("# config_hash: %s\n%s\n", snap.Hash, pretty)
			return nil
		},
	}
	cmd.Flags().String("scorer", "", "scorer (sip, lumpsum, insurance)")
	_ = cmd.MarkFlagRequired("scorer")
	return cmd
}

func configResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace a scorer's config document with the built-in defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scorer, _ := cmd.Flags().GetString("scorer")
			if !model.KnownScorer(scorer) {
				return fmt.Errorf("unknown scorer %q", scorer)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			doc := config.DefaultDocument(scorer)
			if err := store.UpdateConfigDocument(ctx, &doc); err != nil {
				if insertErr := store.InsertConfigDocument(ctx, &doc); insertErr != nil {
					return insertErr
				}
			}

			_, hash, err := config.CanonicalHash(&doc)
			if err != nil {
				return err
			}
			slog.Info("Config document reset to defaults", "scorer", scorer, "config_hash", hash)
			return nil
		},
	}
	cmd.Flags().String("scorer", "", "scorer (sip, lumpsum, insurance)")
	_ = cmd.MarkFlagRequired("scorer")
	return cmd
}
