package command

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/vault-go/internal/cli/connection"
	"github.com/yndnr/vault-go/internal/cli/output"
	"github.com/yndnr/vault-go/internal/core/domain"
)

// DefaultChunk is the READ and WRITE size cat and write use.
const DefaultChunk = 64 * 1024

// CatCommand returns the cat command.
func CatCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "Print device contents to stdout",
		ArgsUsage: "<dev>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "offset", Usage: "start offset"},
			&cli.Int64Flag{Name: "count", Usage: "stop after this many bytes (0 reads to the end)"},
			&cli.IntFlag{Name: "chunk", Usage: "bytes per READ", Value: DefaultChunk},
		},
		Action: deviceCat,
	}
}

// WriteCommand returns the write command.
func WriteCommand() *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "Write data to a device",
		ArgsUsage: "<dev> [data|-]",
		Description: "Writes the data argument, or stdin when it is omitted or \"-\".\n" +
			"Short writes at quantum boundaries are retried until all data is stored.",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "offset", Usage: "start offset"},
			&cli.BoolFlag{Name: "append", Usage: "write at the end of the device"},
			&cli.BoolFlag{Name: "truncate", Usage: "open write-only, discarding existing contents"},
			&cli.IntFlag{Name: "chunk", Usage: "bytes per WRITE", Value: DefaultChunk},
		},
		Action: deviceWrite,
	}
}

// IoctlCommand returns the ioctl command.
func IoctlCommand() *cli.Command {
	return &cli.Command{
		Name:      "ioctl",
		Usage:     "Issue a control command",
		ArgsUsage: "<command> [value]",
		Description: "command is a name such as Q-QUANTUM, X-QSET or RESET, or a numeric code.\n" +
			"Commands that change parameters need --secret, or --local to use the\n" +
			"management socket.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "device", Aliases: []string{"d"}, Usage: "device to open", Value: "0"},
			&cli.BoolFlag{Name: "local", Usage: "send through the local management socket"},
		},
		Action: deviceIoctl,
	}
}

// StatCommand returns the stat command.
func StatCommand() *cli.Command {
	return &cli.Command{
		Name:      "stat",
		Usage:     "Show device size and geometry",
		ArgsUsage: "<dev>",
		Action:    deviceStat,
	}
}

// InfoCommand returns the info command.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "Print the server INFO report",
		Action: serverInfo,
	}
}

// openDevice connects and opens a handle on the device named by the
// first argument.
func openDevice(ctx context.Context, c *cli.Context, mode string) (client *connection.RESPClient, dev, fd int, err error) {
	if dev, err = parseDevice(c.Args().First()); err != nil {
		return nil, 0, 0, err
	}
	client = respClient(c)
	if fd, err = client.Open(ctx, dev, mode); err != nil {
		client.Close()
		return nil, 0, 0, fmt.Errorf("open %s: %w", domain.DeviceName(dev), err)
	}
	return client, dev, fd, nil
}

func deviceCat(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	chunk := c.Int("chunk")
	if chunk <= 0 {
		return fmt.Errorf("invalid chunk size %d", chunk)
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	client, _, fd, err := openDevice(ctx, c, "r")
	if err != nil {
		return err
	}
	defer client.Close()

	if off := c.Int64("offset"); off > 0 {
		if _, err := client.Seek(ctx, fd, off, "SET"); err != nil {
			return err
		}
	}

	remaining := c.Int64("count")
	for {
		n := chunk
		if remaining > 0 && remaining < int64(n) {
			n = int(remaining)
		}
		b, err := client.Read(ctx, fd, n)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return nil
		}
		if _, err := c.App.Writer.Write(b); err != nil {
			return err
		}
		if remaining > 0 {
			if remaining -= int64(len(b)); remaining == 0 {
				return nil
			}
		}
	}
}

// writeResult is the summary write prints.
type writeResult struct {
	Device   string `json:"device" yaml:"device"`
	Written  int64  `json:"written" yaml:"written"`
	Position int64  `json:"position" yaml:"position"`
}

func deviceWrite(c *cli.Context) error {
	if err := requireArgs(c, 1, 2); err != nil {
		return err
	}
	chunk := c.Int("chunk")
	if chunk <= 0 {
		return fmt.Errorf("invalid chunk size %d", chunk)
	}

	var data []byte
	if arg := c.Args().Get(1); arg != "" && arg != "-" {
		data = []byte(arg)
	} else {
		var err error
		if data, err = io.ReadAll(c.App.Reader); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	mode := "rw"
	if c.Bool("truncate") {
		mode = "w"
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	client, dev, fd, err := openDevice(ctx, c, mode)
	if err != nil {
		return err
	}
	defer client.Close()

	var pos int64
	switch {
	case c.Bool("append"):
		pos, err = client.Seek(ctx, fd, 0, "END")
	case c.Int64("offset") > 0:
		pos, err = client.Seek(ctx, fd, c.Int64("offset"), "SET")
	}
	if err != nil {
		return err
	}

	var written int64
	for len(data) > 0 {
		p := data
		if len(p) > chunk {
			p = p[:chunk]
		}
		n, err := client.Write(ctx, fd, p)
		if err != nil {
			return fmt.Errorf("write after %d bytes: %w", written, err)
		}
		if n == 0 {
			return fmt.Errorf("write after %d bytes: no progress", written)
		}
		written += int64(n)
		data = data[n:]
	}

	return render(c, writeResult{
		Device:   domain.DeviceName(dev),
		Written:  written,
		Position: pos + written,
	})
}

// ioctlResult is the outcome of one control command.
type ioctlResult struct {
	Command string `json:"command" yaml:"command"`
	Result  int    `json:"result" yaml:"result"`
	Out     int    `json:"out" yaml:"out"`
}

func deviceIoctl(c *cli.Context) error {
	if err := requireArgs(c, 1, 2); err != nil {
		return err
	}
	code, err := domain.LookupCode(c.Args().Get(0))
	if err != nil {
		return err
	}

	var arg *int
	if s := c.Args().Get(1); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid value %q", s)
		}
		arg = &v
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	if c.Bool("local") {
		return ioctlLocal(ctx, c, code, arg)
	}

	dev, err := parseDevice(c.String("device"))
	if err != nil {
		return err
	}
	client := respClient(c)
	defer client.Close()

	if secret := c.String("secret"); secret != "" {
		if err := client.Auth(ctx, secret); err != nil {
			return err
		}
	}
	fd, err := client.Open(ctx, dev, "r")
	if err != nil {
		return err
	}

	res := ioctlResult{Command: code.String()}
	if res.Result, res.Out, err = client.Ioctl(ctx, fd, code.String(), arg); err != nil {
		return err
	}
	return render(c, res)
}

func ioctlLocal(ctx context.Context, c *cli.Context, code domain.Code, arg *int) error {
	client := socketClient(c)
	defer client.Close()

	args := []string{code.String()}
	if arg != nil {
		args = append(args, strconv.Itoa(*arg))
	}
	var res ioctlResult
	if err := client.Call(ctx, &res, "ioctl", args...); err != nil {
		return err
	}
	return render(c, res)
}

func deviceStat(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	dev, err := parseDevice(c.Args().First())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	client := respClient(c)
	defer client.Close()

	pairs, err := client.Stat(ctx, dev)
	if err != nil {
		return err
	}

	if ParseGlobalFlags(c).Output == output.FormatTable {
		t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
		for _, p := range pairs {
			t.AddRow(p[0], p[1])
		}
		return render(c, t)
	}

	fields := make(map[string]string, len(pairs))
	for _, p := range pairs {
		fields[p[0]] = p[1]
	}
	return render(c, fields)
}

func serverInfo(c *cli.Context) error {
	if err := requireArgs(c, 0, 0); err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	client := respClient(c)
	defer client.Close()

	info, err := client.Info(ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(c.App.Writer, info)
	return err
}
