package app

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/cellcare/cellcare_backend/config"
	"github.com/cellcare/cellcare_backend/internal/repo"
	"github.com/cellcare/cellcare_backend/internal/service/assessment"
	"github.com/cellcare/cellcare_backend/internal/service/dedup"
	"github.com/cellcare/cellcare_backend/pkg/examdate"
	redispkg "github.com/cellcare/cellcare_backend/pkg/redis"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideAssessmentService,
		ProvideRepointers,
		ProvideMerger,
	),
)

func ProvideAssessmentService(
	store *repo.PostgresStore,
	resolver *examdate.Client,
	locker *redispkg.Locker,
	cfg *config.Config,
) assessment.Service {
	deps := assessment.Deps{
		Store:    store,
		Resolver: resolver,
		Location: cfg.Server.Location(),
	}
	if cfg.Assessment.VerifyCustomer {
		deps.Customers = store
	}
	// A nil *Locker must not become a non-nil interface.
	if locker != nil {
		deps.Locker = locker
	}
	return assessment.New(deps)
}

// ProvideRepointers registers one table re-pointer per configured dependent.
func ProvideRepointers(store *repo.PostgresStore, cfg *config.Config) (*dedup.Registry, error) {
	return BuildRepointers(store, cfg.Dedup.Dependents)
}

func BuildRepointers(exec dedup.TableExecutor, dependents []config.DependentTableConfig) (*dedup.Registry, error) {
	reg := dedup.NewRegistry()
	for _, d := range dependents {
		rp, err := dedup.NewTableRepointer(exec, d.Table, d.Column)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(d.Table+"."+d.Column, rp); err != nil {
			return nil, fmt.Errorf("dedup.dependents: %w", err)
		}
	}
	return reg, nil
}

func ProvideMerger(store *repo.PostgresStore, reg *dedup.Registry) *dedup.Merger {
	return dedup.New(store, reg)
}
