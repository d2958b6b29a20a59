package archive

import (
	"context"
	"time"

	"go.uber.org/fx"

	"virtual_trader/internal/modules/config"
	"virtual_trader/internal/storage/s3archive"
	"virtual_trader/pkg/logger"
)

// Module: архив итоговых артефактов в S3. Без bucket — nil, архив выключен.
func Module() fx.Option {
	return fx.Module("archive",
		fx.Provide(func(cfg *config.Config, log *logger.Logger) (*s3archive.Archive, error) {
			a := cfg.Archive
			if a.Bucket == "" {
				return nil, nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s3archive.New(ctx, s3archive.Config{
				Bucket:    a.Bucket,
				Region:    a.Region,
				Endpoint:  a.Endpoint,
				Prefix:    a.Prefix,
				AccessKey: a.AccessKey,
				SecretKey: a.SecretKey,
			}, log)
		}),
	)
}
