package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/cellcare/cellcare_backend/config"
)

// Start builds the infra and service graph for a one-shot command, fills
// targets via fx.Populate and starts the lifecycle. Callers must invoke the
// returned stop func.
func Start(ctx context.Context, cfg *config.Config, targets ...any) (func(context.Context) error, error) {
	a := fx.New(
		fx.Supply(cfg),
		InfraModule,
		ServiceModule,
		fx.Populate(targets...),
		fx.NopLogger,
	)
	if err := a.Err(); err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		return nil, err
	}
	return a.Stop, nil
}
