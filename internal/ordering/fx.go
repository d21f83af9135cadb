package ordering

import (
	"github.com/smallbiznis/cobro/internal/ordering/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ordering.service",
	fx.Provide(service.New),
)
