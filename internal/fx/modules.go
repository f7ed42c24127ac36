package fx

import (
	"raceadmin/internal/agegrade"
	"raceadmin/internal/api"
	"raceadmin/internal/config"
	"raceadmin/internal/database"
	"raceadmin/internal/logger"
	"raceadmin/internal/repository"
	"raceadmin/internal/scheduler"
	"raceadmin/internal/server"
	"raceadmin/internal/service"
	"raceadmin/internal/standings"
	"raceadmin/internal/tasks"

	"go.uber.org/fx"
)

func ProvideGrader() agegrade.Grader {
	return agegrade.NewTableGrader()
}

func ProvidePrecision() agegrade.PrecisionResolver {
	return agegrade.StandardPrecision{}
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewRosterRepository),
	fx.Provide(repository.NewRaceRepository),
	fx.Provide(repository.NewStagedResultRepository),
	fx.Provide(repository.NewExclusionRepository),
	fx.Provide(repository.NewSeriesRepository),
	fx.Provide(repository.NewRankedResultRepository),
	// feed client
	fx.Provide(api.NewFeedClient),
	// tabulation
	fx.Provide(ProvideGrader),
	fx.Provide(ProvidePrecision),
	fx.Provide(standings.New),
	// background tasks
	fx.Provide(tasks.NewManager),
	// svc
	fx.Provide(service.NewRosterImportService),
	fx.Provide(service.NewImportService),
	fx.Provide(service.NewConfirmService),
	fx.Provide(service.NewStandingsService),
	// scheduler
	fx.Provide(scheduler.New),
	// server
	fx.Provide(server.NewServer),
)
