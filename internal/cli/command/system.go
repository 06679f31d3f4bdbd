package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/vault-go/internal/cli/output"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/server/httpserver/handler"
	"github.com/yndnr/vault-go/internal/server/localserver"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show server status from the local socket",
		Action: systemStatus,
	}
}

// DevicesCommand returns the devices command.
func DevicesCommand() *cli.Command {
	return &cli.Command{
		Name:    "devices",
		Aliases: []string{"ls"},
		Usage:   "List devices",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "local", Usage: "query the local management socket instead of HTTP"},
		},
		Action: systemDevices,
	}
}

// ParamsCommand returns the params command.
func ParamsCommand() *cli.Command {
	return &cli.Command{
		Name:   "params",
		Usage:  "Show current and default quantum and qset",
		Action: systemParams,
	}
}

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check server health",
		Action: systemHealth,
	}
}

func systemStatus(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	client := socketClient(c)
	defer client.Close()

	var status localserver.Status
	if err := client.Call(ctx, &status, "status"); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return render(c, status)
}

func systemDevices(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	var devices []service.DeviceStat
	if c.Bool("local") {
		client := socketClient(c)
		defer client.Close()
		if err := client.Call(ctx, &devices, "devices"); err != nil {
			return err
		}
	} else {
		var list handler.ListDevicesResponse
		if err := httpClient(c).GetData(ctx, "/v1/devices", &list); err != nil {
			return err
		}
		devices = list.Devices
	}
	return render(c, devices)
}

func systemParams(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	var params handler.ParamsResponse
	if err := httpClient(c).GetData(ctx, "/v1/params", &params); err != nil {
		return err
	}
	return render(c, params)
}

func systemHealth(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	client := httpClient(c)
	var result struct {
		Status string `json:"status" yaml:"status"`
		Time   string `json:"time" yaml:"time"`
	}
	if err := client.GetData(ctx, "/health", &result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if ParseGlobalFlags(c).Output != output.FormatTable {
		return render(c, result)
	}
	if result.Status == "healthy" {
		fmt.Fprintf(c.App.Writer, "✓ Server is healthy\n  Target: %s\n", client.BaseURL())
		return nil
	}
	fmt.Fprintf(c.App.Writer, "✗ Server is unhealthy: %s\n", result.Status)
	return fmt.Errorf("server unhealthy")
}
