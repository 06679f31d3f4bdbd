package service

import (
	"context"
	"log/slog"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/telemetry/logger"
)

// Controller executes control commands against the shared Params.
type Controller struct {
	params   *domain.Params
	observer Observer
	logger   *slog.Logger
}

// NewController creates a Controller bound to params.
func NewController(params *domain.Params, observer Observer, logger *slog.Logger) *Controller {
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		params:   params,
		observer: observer,
		logger:   logger,
	}
}

// Dispatch decodes a packed code and executes it.
func (c *Controller) Dispatch(ctx context.Context, code domain.Code, arg domain.Arg) (int, error) {
	cmd, err := domain.Decode(code, arg)
	if err != nil {
		c.observer.ObserveControl(code.String(), err)
		return 0, err
	}
	return c.Execute(ctx, cmd)
}

// Execute runs a decoded command. The result is meaningful for Query and
// Shift; other shapes return 0 and report through Arg.Ptr where they
// have an out-parameter.
//
// Checks run in a fixed order: the pointer of an indirect shape, then
// privilege, then the proposed value.
func (c *Controller) Execute(ctx context.Context, cmd domain.Command) (int, error) {
	ret, err := c.execute(ctx, cmd)
	c.observer.ObserveControl(cmd.Name(), err)
	if err != nil {
		c.logger.Debug("control command rejected", "command", cmd.Name(), "error", err)
	} else if cmd.Op.Mutates() || cmd.Op == domain.OpReset {
		c.logger.Info("sizing parameters changed",
			"command", cmd.Name(),
			"params", c.params.String(),
			"peer", domain.CredentialsFromContext(ctx).Peer,
			"conn_id", logger.ConnIDFromContext(ctx))
	}
	return ret, err
}

func (c *Controller) execute(ctx context.Context, cmd domain.Command) (int, error) {
	if cmd.Op.Indirect() && cmd.Ptr == nil {
		return 0, domain.ErrBadAddress.WithDetails(cmd.Name() + " needs an argument address")
	}
	if cmd.Privileged() && !domain.CredentialsFromContext(ctx).Privileged {
		return 0, domain.ErrPermissionDenied.WithDetails(cmd.Name())
	}

	switch cmd.Op {
	case domain.OpReset:
		c.params.Reset()
		return 0, nil

	case domain.OpSet:
		if err := domain.ValidateValue(cmd.Field, *cmd.Ptr); err != nil {
			return 0, err
		}
		c.params.Swap(cmd.Field, *cmd.Ptr)
		return 0, nil

	case domain.OpTell:
		if err := domain.ValidateValue(cmd.Field, cmd.Value); err != nil {
			return 0, err
		}
		c.params.Swap(cmd.Field, cmd.Value)
		return 0, nil

	case domain.OpGet:
		*cmd.Ptr = c.params.Get(cmd.Field)
		return 0, nil

	case domain.OpQuery:
		return c.params.Get(cmd.Field), nil

	case domain.OpExchange:
		if err := domain.ValidateValue(cmd.Field, *cmd.Ptr); err != nil {
			return 0, err
		}
		*cmd.Ptr = c.params.Swap(cmd.Field, *cmd.Ptr)
		return 0, nil

	case domain.OpShift:
		if err := domain.ValidateValue(cmd.Field, cmd.Value); err != nil {
			return 0, err
		}
		return c.params.Swap(cmd.Field, cmd.Value), nil
	}

	return 0, domain.ErrInvalidCommand.WithDetails(cmd.Name())
}

// Params returns the Params the controller acts on.
func (c *Controller) Params() *domain.Params {
	return c.params
}
