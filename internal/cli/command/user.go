package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

// UserCommand returns the user subcommand group.
func UserCommand() *cli.Command {
	passwordFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Password (visible in the process list; prefer --password-stdin)",
		},
		&cli.BoolFlag{
			Name:  "password-stdin",
			Usage: "Read the password from the first line of stdin",
		},
	}

	return &cli.Command{
		Name:    "user",
		Aliases: []string{"users"},
		Usage:   "Manage users",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List users",
				Action: userList,
			},
			{
				Name:      "add",
				Usage:     "Create a user",
				ArgsUsage: "EMAIL",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "admin",
						Usage: "Grant access to every location and the admin API",
					},
				}, passwordFlags...),
				Action: userAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Delete a user with its grants and sessions",
				ArgsUsage: "EMAIL",
				Action:    userRemove,
			},
			{
				Name:      "passwd",
				Usage:     "Set a user's password and end the user's sessions (offline mode)",
				ArgsUsage: "EMAIL",
				Flags:     passwordFlags,
				Action:    userPasswd,
			},
		},
	}
}

func userList(c *cli.Context) error {
	return withBackend(c, func(ctx context.Context, b Backend) error {
		users, err := b.ListUsers(ctx)
		if err != nil {
			return err
		}
		return render(c, users)
	})
}

func userAdd(c *cli.Context) error {
	email := c.Args().First()
	if email == "" {
		return fmt.Errorf("email required")
	}
	password, err := readSecret(c, "password", c.Bool("password-stdin"))
	if err != nil {
		return err
	}
	return withBackend(c, func(ctx context.Context, b Backend) error {
		u, err := b.AddUser(ctx, email, password, c.Bool("admin"))
		if err != nil {
			return err
		}
		return render(c, u)
	})
}

func userRemove(c *cli.Context) error {
	email := c.Args().First()
	if email == "" {
		return fmt.Errorf("email required")
	}
	return withBackend(c, func(ctx context.Context, b Backend) error {
		if err := b.RemoveUser(ctx, email); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "user %s removed\n", email)
		return nil
	})
}

func userPasswd(c *cli.Context) error {
	email := c.Args().First()
	if email == "" {
		return fmt.Errorf("email required")
	}
	password, err := readSecret(c, "password", c.Bool("password-stdin"))
	if err != nil {
		return err
	}
	return withBackend(c, func(ctx context.Context, b Backend) error {
		if err := b.SetPassword(ctx, email, password); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "password of %s changed\n", email)
		return nil
	})
}
