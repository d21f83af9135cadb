package billingcycle

import (
	"github.com/smallbiznis/cobro/internal/billingcycle/repository"
	"github.com/smallbiznis/cobro/internal/billingcycle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingcycle.service",
	fx.Provide(service.ProvideConfig),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
