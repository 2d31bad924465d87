package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nguyendn/wwwhisper/internal/cli/config"
	"github.com/nguyendn/wwwhisper/internal/cli/connection"
	"github.com/nguyendn/wwwhisper/internal/cli/output"
	"github.com/nguyendn/wwwhisper/internal/infra/buildinfo"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// commandTimeout bounds a single command including login.
const commandTimeout = 30 * time.Second

// Opener builds the Backend for a command invocation.
type Opener func(c *cli.Context) (Backend, error)

const (
	metaOpener  = "opener"
	metaProfile = "profile"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "wwwhisper-admin",
		Usage:   "Manage wwwhisper users and locations",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			UserCommand(),
			LocationCommand(),
			VersionCommand(),
		},
		Metadata: map[string]any{metaOpener: Opener(openBackend)},
		Before: func(c *cli.Context) error {
			profile, err := config.Load(c.String("profile"))
			if err != nil {
				return err
			}
			c.App.Metadata[metaProfile] = profile
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "Profile file with defaults for the flags below",
			EnvVars: []string{"WWWHISPER_ADMIN_PROFILE"},
			Value:   config.DefaultPath(),
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Server config file; work on its store directly (offline mode)",
			EnvVars: []string{"WWWHISPER_ADMIN_SERVER_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "wwwhisper address for API mode (e.g. https://example.org)",
			EnvVars: []string{"WWWHISPER_ADMIN_SERVER"},
		},
		&cli.StringFlag{
			Name:    "email",
			Aliases: []string{"u"},
			Usage:   "Admin email for API mode",
			EnvVars: []string{"WWWHISPER_ADMIN_EMAIL"},
		},
		&cli.StringFlag{
			Name:    "password-file",
			Usage:   "File holding the admin password for API mode",
			EnvVars: []string{"WWWHISPER_ADMIN_PASSWORD_FILE"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"WWWHISPER_ADMIN_OUTPUT"},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log store activity to stderr",
		},
	}
}

// GlobalFlags are the resolved global settings: flags first, then the
// profile.
type GlobalFlags struct {
	ServerConfig string
	Server       string
	Email        string
	PasswordFile string
	Output       output.Format
	Verbose      bool
}

// ParseGlobalFlags merges the flags with the profile loaded in Before.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	profile, _ := c.App.Metadata[metaProfile].(*config.AdminConfig)
	if profile == nil {
		profile = config.Default()
	}
	pick := func(flag, fallback string) string {
		if v := c.String(flag); v != "" {
			return v
		}
		return fallback
	}

	format, err := output.ParseFormat(pick("output", profile.Output))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		ServerConfig: pick("config", profile.ServerConfig),
		Server:       pick("server", profile.Server),
		Email:        pick("email", profile.Email),
		PasswordFile: pick("password-file", profile.PasswordFile),
		Output:       format,
		Verbose:      c.Bool("verbose"),
	}, nil
}

// openBackend picks offline mode when a server config is known, API mode
// when a server address is.
func openBackend(c *cli.Context) (Backend, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()

	switch {
	case flags.ServerConfig != "":
		log := logger.Nop()
		if flags.Verbose {
			if log, err = logger.New(logger.Config{Level: "debug", Format: "text", Output: c.App.ErrWriter}); err != nil {
				return nil, err
			}
		}
		return OpenStoreBackend(ctx, flags.ServerConfig, log)

	case flags.Server != "":
		if flags.Email == "" {
			return nil, errors.New("--email is required in API mode")
		}
		password := os.Getenv("WWWHISPER_ADMIN_PASSWORD")
		if password == "" {
			if flags.PasswordFile == "" {
				return nil, errors.New("set --password-file or WWWHISPER_ADMIN_PASSWORD in API mode")
			}
			if password, err = config.ReadPassword(flags.PasswordFile); err != nil {
				return nil, err
			}
		}
		client, err := connection.NewClient(flags.Server)
		if err != nil {
			return nil, err
		}
		return NewAPIBackend(ctx, client, flags.Email, password)

	default:
		return nil, errors.New("either --config (offline mode) or --server (API mode) is required")
	}
}

// withBackend opens the backend, runs fn and closes the backend.
func withBackend(c *cli.Context, fn func(ctx context.Context, b Backend) error) error {
	open, _ := c.App.Metadata[metaOpener].(Opener)
	if open == nil {
		open = openBackend
	}
	b, err := open(c)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(c.Context, commandTimeout)
	defer cancel()
	return fn(ctx, b)
}

// render prints data in the selected output format.
func render(c *cli.Context, data any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(flags.Output).Format(c.App.Writer, data)
}

// readSecret returns the value of flag, or the first line of stdin when
// fromStdin is set.
func readSecret(c *cli.Context, flag string, fromStdin bool) (string, error) {
	if !fromStdin {
		v := c.String(flag)
		if v == "" {
			return "", fmt.Errorf("--%s or --%s-stdin is required", flag, flag)
		}
		return v, nil
	}
	var r io.Reader = os.Stdin
	if c.App.Reader != nil {
		r = c.App.Reader
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
