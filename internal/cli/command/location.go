package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

// LocationCommand returns the location subcommand group.
func LocationCommand() *cli.Command {
	return &cli.Command{
		Name:    "location",
		Aliases: []string{"loc"},
		Usage:   "Manage protected locations and who may visit them",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List locations",
				Action: locationList,
			},
			{
				Name:      "add",
				Usage:     "Protect a path and everything below it",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Admit any signed-in user",
					},
				},
				Action: locationAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Stop protecting a path",
				ArgsUsage: "PATH",
				Action:    locationRemove,
			},
			{
				Name:      "open",
				Usage:     "Admit any signed-in user to PATH",
				ArgsUsage: "PATH",
				Action:    func(c *cli.Context) error { return locationSetOpen(c, true) },
			},
			{
				Name:      "close",
				Usage:     "Admit only granted users to PATH",
				ArgsUsage: "PATH",
				Action:    func(c *cli.Context) error { return locationSetOpen(c, false) },
			},
			{
				Name:      "grant",
				Usage:     "Allow a user to visit PATH",
				ArgsUsage: "PATH EMAIL",
				Action:    locationGrant,
			},
			{
				Name:      "revoke",
				Usage:     "Withdraw a user's access to PATH",
				ArgsUsage: "PATH EMAIL",
				Action:    locationRevoke,
			},
		},
	}
}

func locationList(c *cli.Context) error {
	return withBackend(c, func(ctx context.Context, b Backend) error {
		locs, err := b.ListLocations(ctx)
		if err != nil {
			return err
		}
		return render(c, locs)
	})
}

func locationAdd(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("path required")
	}
	return withBackend(c, func(ctx context.Context, b Backend) error {
		loc, err := b.AddLocation(ctx, path, c.Bool("open"))
		if err != nil {
			return err
		}
		return render(c, loc)
	})
}

func locationRemove(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("path required")
	}
	return withBackend(c, func(ctx context.Context, b Backend) error {
		if err := b.RemoveLocation(ctx, path); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "location %s removed\n", path)
		return nil
	})
}

func locationSetOpen(c *cli.Context, open bool) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("path required")
	}
	return withBackend(c, func(ctx context.Context, b Backend) error {
		loc, err := b.SetOpenAccess(ctx, path, open)
		if err != nil {
			return err
		}
		return render(c, loc)
	})
}

func grantArgs(c *cli.Context) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", fmt.Errorf("PATH and EMAIL required")
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

func locationGrant(c *cli.Context) error {
	path, email, err := grantArgs(c)
	if err != nil {
		return err
	}
	return withBackend(c, func(ctx context.Context, b Backend) error {
		if err := b.Grant(ctx, path, email); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s may now visit %s\n", email, path)
		return nil
	})
}

func locationRevoke(c *cli.Context) error {
	path, email, err := grantArgs(c)
	if err != nil {
		return err
	}
	return withBackend(c, func(ctx context.Context, b Backend) error {
		if err := b.Revoke(ctx, path, email); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s may no longer visit %s\n", email, path)
		return nil
	})
}
