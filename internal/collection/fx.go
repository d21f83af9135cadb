package collection

import (
	"github.com/smallbiznis/cobro/internal/collection/repository"
	"github.com/smallbiznis/cobro/internal/collection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("collection",
	fx.Provide(
		repository.Provide,
		service.ProvideConfig,
		service.New,
	),
)
