package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"shortcut-service/internal/api"
	"shortcut-service/internal/app"
	"shortcut-service/internal/config"
	"shortcut-service/internal/links"
)

type cli struct {
	out        io.Writer
	loadConfig func() (*config.Config, error)
	openApp    func(ctx context.Context, cfg *config.Config) (*app.App, error)
}

// withApp loads config, opens the store, runs fn and closes the store.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := c.openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Manage short links",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		c.createCmd(),
		c.updateCmd(),
		c.retireCmd(),
		c.resolveCmd(),
		c.listCmd(),
		c.tokenCmd(),
	)
	return root
}

func (c *cli) createCmd() *cobra.Command {
	var owner, target string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a short link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				link, err := a.Manager.Create(ctx, owner, target)
				if err != nil {
					return err
				}
				return c.print(api.NewShortcutResponse(link, a.Config.BaseURL))
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity")
	cmd.Flags().StringVar(&target, "url", "", "target URL")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var owner, id, target string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace the target of an active link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				link, err := a.Manager.Update(ctx, owner, id, target)
				if err != nil {
					return err
				}
				return c.print(api.NewShortcutResponse(link, a.Config.BaseURL))
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity")
	cmd.Flags().StringVar(&id, "id", "", "link id")
	cmd.Flags().StringVar(&target, "url", "", "new target URL")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (c *cli) retireCmd() *cobra.Command {
	var owner, id string
	cmd := &cobra.Command{
		Use:   "retire",
		Short: "Retire a link; its code stops resolving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				link, err := a.Manager.Retire(ctx, owner, id)
				if err != nil {
					return err
				}
				return c.print(api.NewShortcutResponse(link, a.Config.BaseURL))
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity")
	cmd.Flags().StringVar(&id, "id", "", "link id")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (c *cli) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve CODE",
		Short: "Resolve a code and count the visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Resolver.Resolve(ctx, args[0])
				if err != nil {
					if errors.Is(err, links.ErrNotFound) {
						return errors.New("short URL not found or inactive")
					}
					return err
				}
				return c.print(api.RedirectResponse{
					Code:        res.Code,
					OriginalURL: res.Target,
					ShortURL:    api.ShortURL(a.Config.BaseURL, res.Code),
					Visits:      res.Visits,
				})
			})
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active links, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				page, total, err := a.Manager.ListActive(ctx, links.Page{Limit: limit, Offset: offset})
				if err != nil {
					return err
				}
				shortcuts := make([]api.ShortcutResponse, len(page))
				for i, link := range page {
					shortcuts[i] = api.NewShortcutResponse(link, a.Config.BaseURL)
				}
				return c.print(api.ListResponse{Shortcuts: shortcuts, Count: total})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of links (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of links to skip")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var owner string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			token, err := api.IssueToken([]byte(cfg.JWTSecret), owner, ttl)
			if err != nil {
				return err
			}
			_, err = io.WriteString(c.out, token+"\n")
			return err
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity (token subject)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
