package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/vault-go/internal/core/domain"
)

// AdminCommand returns the admin subcommand group. Every subcommand goes
// through the local management socket, which is always privileged.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Local management commands",
		Subcommands: []*cli.Command{
			{
				Name:      "trim",
				Usage:     "Discard a device's contents",
				ArgsUsage: "<dev>",
				Action:    adminTrim,
			},
			{
				Name:      "loglevel",
				Usage:     "Show or change the server log level",
				ArgsUsage: "[debug|info|warn|error]",
				Action:    adminLogLevel,
			},
			{
				Name:   "reload",
				Usage:  "Reload the server configuration file",
				Action: adminSimple("reload", "configuration reloaded"),
			},
			{
				Name:   "shutdown",
				Usage:  "Stop the server",
				Action: adminSimple("shutdown", "shutdown requested"),
			},
		},
	}
}

func adminTrim(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	dev, err := parseDevice(c.Args().First())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	client := socketClient(c)
	defer client.Close()

	if err := client.Call(ctx, nil, "trim", fmt.Sprint(dev)); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s trimmed\n", domain.DeviceName(dev))
	return nil
}

func adminLogLevel(c *cli.Context) error {
	if err := requireArgs(c, 0, 1); err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	client := socketClient(c)
	defer client.Close()

	var level string
	if err := client.Call(ctx, &level, "loglevel", c.Args().Slice()...); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, level)
	return nil
}

func adminSimple(cmd, done string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := requireArgs(c, 0, 0); err != nil {
			return err
		}
		ctx, cancel := commandContext(c)
		defer cancel()

		client := socketClient(c)
		defer client.Close()

		if err := client.Call(ctx, nil, cmd); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, done)
		return nil
	}
}
