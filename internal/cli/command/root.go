package command

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/vault-go/internal/cli/connection"
	"github.com/yndnr/vault-go/internal/cli/output"
	"github.com/yndnr/vault-go/internal/infra/buildinfo"
	"github.com/yndnr/vault-go/internal/server/config"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "vault-cli",
		Usage:                "vault device and management client",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			CatCommand(),
			WriteCommand(),
			IoctlCommand(),
			StatCommand(),
			InfoCommand(),
			StatusCommand(),
			DevicesCommand(),
			ParamsCommand(),
			HealthCommand(),
			AdminCommand(),
		},
		Before: func(c *cli.Context) error {
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "RESP address of vault-server",
			EnvVars: []string{"VAULT_SERVER"},
			Value:   config.DefaultRESPAddr,
		},
		&cli.StringFlag{
			Name:    "http",
			Usage:   "HTTP inspection address of vault-server",
			EnvVars: []string{"VAULT_HTTP"},
			Value:   config.DefaultHTTPAddr,
		},
		&cli.StringFlag{
			Name:    "socket",
			Usage:   "local management socket path",
			EnvVars: []string{"VAULT_SOCKET"},
			Value:   config.DefaultLocalSocket,
		},
		&cli.StringFlag{
			Name:    "secret",
			Usage:   "admin secret sent with AUTH before privileged commands",
			EnvVars: []string{"VAULT_ADMIN_SECRET"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "per-command timeout",
			Value: 30 * time.Second,
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server string
	HTTP   string
	Socket string
	Secret string

	Output  output.Format
	Wide    bool
	Timeout time.Duration
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:  c.String("server"),
		HTTP:    c.String("http"),
		Socket:  c.String("socket"),
		Secret:  c.String("secret"),
		Output:  output.Format(c.String("output")),
		Wide:    c.Bool("wide"),
		Timeout: c.Duration("timeout"),
	}
}

// commandContext bounds one command by the --timeout flag.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if d := c.Duration("timeout"); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func respClient(c *cli.Context) *connection.RESPClient {
	return connection.NewRESPClient(c.String("server"), 0)
}

func socketClient(c *cli.Context) *connection.SocketClient {
	return connection.NewSocketClient(c.String("socket"))
}

func httpClient(c *cli.Context) *connection.HTTPClient {
	return connection.NewHTTPClient(c.String("http"))
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
}

// parseDevice accepts "3" or "vault3".
func parseDevice(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "vault"))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid device %q", s)
	}
	return n, nil
}

// requireArgs checks the positional argument count.
func requireArgs(c *cli.Context, lo, hi int) error {
	n := c.NArg()
	if n < lo || n > hi {
		return fmt.Errorf("%s: wrong number of arguments\nusage: %s %s",
			c.Command.Name, c.Command.HelpName, c.Command.ArgsUsage)
	}
	return nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
