package httpapi

import (
	"net/http"

	"github.com/foxseedlab/minutagen/external/realtime"
	"github.com/foxseedlab/minutagen/internal/config"
	"github.com/foxseedlab/minutagen/internal/minutes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (http.Handler, error) {
		c := do.MustInvoke[*config.Config](i)
		svc := do.MustInvoke[*minutes.Service](i)
		hub := do.MustInvoke[*realtime.Hub](i)
		reg := do.MustInvoke[*prometheus.Registry](i)
		cfg := RouterConfig{
			AllowedOrigin:  c.AllowedOrigin,
			MaxUploadBytes: c.MaxUploadBytes,
		}
		return NewRouter(cfg, svc, hub, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})), nil
	})
}
