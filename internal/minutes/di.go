package minutes

import (
	"github.com/foxseedlab/minutagen/internal/media"
	"github.com/foxseedlab/minutagen/internal/metrics"
	"github.com/foxseedlab/minutagen/internal/storage"
	"github.com/foxseedlab/minutagen/internal/summarizer"
	"github.com/foxseedlab/minutagen/internal/transcriber"
	"github.com/foxseedlab/minutagen/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		batch := do.MustInvoke[transcriber.BatchTranscriber](i)
		sum := do.MustInvoke[summarizer.Summarizer](i)
		tc := do.MustInvoke[media.Transcoder](i)
		dl := do.MustInvoke[media.Downloader](i)
		store := do.MustInvoke[storage.ObjectStore](i)
		wh := do.MustInvoke[webhook.Sender](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewService(batch, sum, tc, dl, store, wh, m), nil
	})
}
