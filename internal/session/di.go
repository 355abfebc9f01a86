package session

import (
	"github.com/foxseedlab/minutagen/internal/config"
	"github.com/foxseedlab/minutagen/internal/metrics"
	"github.com/foxseedlab/minutagen/internal/realtime"
	"github.com/foxseedlab/minutagen/internal/summarizer"
	"github.com/foxseedlab/minutagen/internal/transcriber"
	"github.com/foxseedlab/minutagen/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		sum := do.MustInvoke[summarizer.Summarizer](i)
		pub := do.MustInvoke[realtime.Publisher](i)
		wh := do.MustInvoke[webhook.Sender](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewManager(cfg, stt, sum, pub, wh, m), nil
	})
}
