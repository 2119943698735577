package command

import (
	"context"

	"github.com/psds-microservice/support-relay/internal/relay"
)

// Next — обработчик, которому уходят все не-командные события (роутер тикетов).
type Next interface {
	HandleMessage(ctx context.Context, evt relay.MessageEvent) error
	HandleMembership(ctx context.Context, evt relay.MembershipEvent) error
}

// Dispatcher consumes commands before the ticket router sees them.
type Dispatcher struct {
	commands *Handler
	next     Next
}

func NewDispatcher(commands *Handler, next Next) *Dispatcher {
	return &Dispatcher{commands: commands, next: next}
}

func (d *Dispatcher) HandleMessage(ctx context.Context, evt relay.MessageEvent) error {
	handled, err := d.commands.Handle(ctx, evt)
	if handled {
		return err
	}
	return d.next.HandleMessage(ctx, evt)
}

func (d *Dispatcher) HandleMembership(ctx context.Context, evt relay.MembershipEvent) error {
	return d.next.HandleMembership(ctx, evt)
}
