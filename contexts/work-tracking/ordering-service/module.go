package orderingservice

import (
	"log/slog"

	httpadapter "compass/contexts/work-tracking/ordering-service/adapters/http"
	"compass/contexts/work-tracking/ordering-service/adapters/memory"
	"compass/contexts/work-tracking/ordering-service/application"
	"compass/contexts/work-tracking/ordering-service/domain/entities"
	"compass/contexts/work-tracking/ordering-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:        deps.Repo,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGen,
		Logger:      deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Ordering: service,
			Logger:   deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(seed []entities.Ordering, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Repo:   store,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}
