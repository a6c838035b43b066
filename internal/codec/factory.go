package codec

import (
	"fmt"
	"log/slog"

	"imgvault/internal/config"
)

// NewFromConfig builds the converter selected by the conversion section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Converter, error) {
	var encoders []Encoder
	switch cfg.Conversion.Backend {
	case config.BackendBuiltin:
		encoders = []Encoder{WebPEncoder{}, AVIFEncoder{}}
	case config.BackendExternal:
		webpEnc, err := NewExternalEncoder(config.FormatWebP, cfg.CWebPBinary())
		if err != nil {
			return nil, err
		}
		avifEnc, err := NewExternalEncoder(config.FormatAVIF, cfg.AVIFEncBinary())
		if err != nil {
			return nil, err
		}
		encoders = []Encoder{webpEnc, avifEnc}
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", cfg.Conversion.Backend)
	}
	return NewConverter(cfg.MemoryLimitBytes(), logger, encoders...), nil
}
