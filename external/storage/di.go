package storage

import (
	"context"

	"github.com/foxseedlab/minutagen/internal/config"
	"github.com/foxseedlab/minutagen/internal/storage"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*GCSObjectStore, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewGCSObjectStore(context.Background(), c.GoogleCloudCredentialsJSON, c.GCSBucket)
	})
	do.Provide(injector, func(i do.Injector) (storage.ObjectStore, error) {
		return do.MustInvoke[*GCSObjectStore](i), nil
	})
}
