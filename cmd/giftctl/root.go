package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/LJTian/GiftNewsHub/internal/api"
	"github.com/LJTian/GiftNewsHub/internal/app"
	"github.com/LJTian/GiftNewsHub/internal/config"
	"github.com/LJTian/GiftNewsHub/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "giftctl",
		Short:         "Operate the gift news pipeline from the shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCollectCmd(),
		newPublishCmd(),
		newPublishOneCmd(),
		newUnpublishCmd(),
		newSourcesCmd(),
		newTokenCmd(),
	)
	return root
}

// withApp loads config, builds the services and closes them after fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.Build(cfg, logging.New(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run one ingestion cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := a.SeedSources(ctx); err != nil {
					return err
				}
				report, err := a.Scheduler.Cycle(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newPublishCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Run one publish batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Publisher.PublishBatch(ctx, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "publish even when auto publish is disabled")
	return cmd
}

func newPublishOneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish-one <id>",
		Short: "Publish a single news item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Publisher.PublishOne(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), n)
			})
		},
	}
}

func newUnpublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish <id>",
		Short: "Delete a published item from the channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Publisher.Unpublish(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), n)
			})
		},
	}
}

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect or seed the source registry",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "list",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, a *app.App) error {
					list, err := a.Store.ListSources(ctx)
					if err != nil {
						return err
					}
					w := cmd.OutOrStdout()
					for _, s := range list {
						state := "active"
						if !s.Active {
							state = "inactive"
						}
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Kind, s.Category, state, s.Address)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:  "seed",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, a *app.App) error {
					n, err := a.SeedSources(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %d sources\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			tok, err := api.IssueToken(cfg.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
