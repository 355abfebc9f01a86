package realtime

import (
	"github.com/foxseedlab/minutagen/internal/config"
	"github.com/foxseedlab/minutagen/internal/realtime"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Hub, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHub(c.AllowedOrigin, c.MaxAudioChunkBytes), nil
	})
	do.Provide(injector, func(i do.Injector) (realtime.Publisher, error) {
		return do.MustInvoke[*Hub](i), nil
	})
}
