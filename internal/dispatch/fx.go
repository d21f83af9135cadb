package dispatch

import (
	"github.com/smallbiznis/cobro/internal/dispatch/repository"
	"github.com/smallbiznis/cobro/internal/dispatch/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dispatch",
	fx.Provide(
		service.ProvideConfig,
		repository.Provide,
		service.New,
	),
)
