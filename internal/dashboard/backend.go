package dashboard

import (
	"context"

	"grimm.is/wanboard/internal/wan"
)

// LocalBackend drives a Coordinator straight from a wan.Service, without
// going through the HTTP API.
type LocalBackend struct {
	Service *wan.Service
}

// Connections implements Backend.
func (b LocalBackend) Connections(ctx context.Context) ([]wan.Connection, error) {
	return b.Service.Connections(ctx)
}

// Prefer implements Backend.
func (b LocalBackend) Prefer(ctx context.Context, interfaceName string) error {
	_, err := b.Service.PreferConnection(ctx, interfaceName)
	return err
}

// Refresh implements Backend.
func (b LocalBackend) Refresh(ctx context.Context, interfaceName string) error {
	_, err := b.Service.RefreshInterface(ctx, interfaceName)
	return err
}
