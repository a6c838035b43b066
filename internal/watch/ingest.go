package watch

import (
	"context"
	"log/slog"
	"slices"

	"imgvault/internal/codec"
	"imgvault/internal/library"
	"imgvault/internal/logging"
	"imgvault/internal/optimizer"
)

// Catalog registers new files with the media library.
type Catalog interface {
	FindByPath(ctx context.Context, path string) (*library.Asset, error)
	Add(ctx context.Context, path string) (*library.Asset, error)
}

// Converter optimizes one registered asset.
type Converter interface {
	Optimize(ctx context.Context, id int64) optimizer.Outcome
}

// Ingestor registers settled uploads of eligible types and converts them.
// Files already in the library are ignored, which covers originals put back
// by a rollback or restore.
type Ingestor struct {
	catalog Catalog
	conv    Converter
	mimes   []string
	logger  *slog.Logger
}

// NewIngestor builds an ingestor converting the given MIME types.
func NewIngestor(catalog Catalog, conv Converter, mimes []string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		catalog: catalog,
		conv:    conv,
		mimes:   append([]string(nil), mimes...),
		logger:  logging.NewComponentLogger(logger, "watch"),
	}
}

// HandleStable is a StableFunc.
func (i *Ingestor) HandleStable(ctx context.Context, path string) {
	// Converter output appears in the uploads tree too; only eligible inputs
	// are registered here.
	if mime, ok := codec.MIMEForPath(path); !ok || !slices.Contains(i.mimes, mime) {
		return
	}
	existing, err := i.catalog.FindByPath(ctx, path)
	if err != nil {
		i.logger.Debug("library lookup failed", logging.String("path", path), logging.Error(err))
		return
	}
	if existing != nil {
		return
	}
	asset, err := i.catalog.Add(ctx, path)
	if err != nil {
		logging.WarnWithContext(i.logger, "upload not registered", "watch_register_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run scan once the file is readable"),
			logging.String(logging.FieldImpact, "upload not converted"),
		)
		return
	}
	out := i.conv.Optimize(ctx, asset.ID)
	i.logger.Info("upload processed",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("path", path),
		logging.String("status", string(out.Status)),
		logging.String(logging.FieldEventType, "watch_upload_processed"),
	)
}
