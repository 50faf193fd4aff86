package shortener

import (
	"context"
	"errors"

	"github.com/serroba/redirect-engine/internal/base62"
	"github.com/serroba/redirect-engine/internal/idgen"
	"github.com/serroba/redirect-engine/internal/metrics"
)

// CodeSource hands out candidate codes for generated mappings.
type CodeSource interface {
	NextCode(ctx context.Context) (Code, error)
}

// CodeSourceFunc adapts a function to CodeSource.
type CodeSourceFunc func(ctx context.Context) (Code, error)

func (f CodeSourceFunc) NextCode(ctx context.Context) (Code, error) {
	return f(ctx)
}

// SnowflakeSource encodes snowflake identifiers in base62.
type SnowflakeSource struct {
	ids   *idgen.Generator
	codec *base62.Codec
}

// NewSnowflakeSource creates a source backed by ids and codec.
func NewSnowflakeSource(ids *idgen.Generator, codec *base62.Codec) *SnowflakeSource {
	return &SnowflakeSource{ids: ids, codec: codec}
}

func (s *SnowflakeSource) NextCode(ctx context.Context) (Code, error) {
	id, err := s.ids.Next(ctx)
	if err != nil {
		if errors.Is(err, idgen.ErrClockRegression) {
			metrics.ClockRegressions.Inc()
		}

		return "", err
	}

	metrics.IDsIssued.Inc()

	return Code(s.codec.Encode(uint64(id))), nil
}
