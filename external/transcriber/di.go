package transcriber

import (
	"github.com/foxseedlab/minutagen/internal/config"
	"github.com/foxseedlab/minutagen/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		return NewCloudSpeechTranscriber(cloudSpeechConfig(do.MustInvoke[*config.Config](i))), nil
	})
	do.Provide(injector, func(i do.Injector) (transcriber.BatchTranscriber, error) {
		return NewCloudSpeechBatchTranscriber(cloudSpeechConfig(do.MustInvoke[*config.Config](i))), nil
	})
}

func cloudSpeechConfig(c *config.Config) CloudSpeechConfig {
	return CloudSpeechConfig{
		CredentialsJSON:       c.GoogleCloudCredentialsJSON,
		Language:              c.SpeechLanguage,
		Model:                 c.SpeechModel,
		StreamSampleRateHertz: c.SpeechStreamSampleRate,
		CloseTimeout:          c.StreamCloseTimeout,
	}
}
