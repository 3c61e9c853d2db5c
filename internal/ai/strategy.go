package ai

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNoResult is returned when every strategy came back empty
var ErrNoResult = errors.New("no analysis strategy produced a result")

// Strategy is one tier of an analysis chain. Run returns nil, nil when the
// tier has nothing to offer.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) (*Analysis, error)
}

// FirstSuccess runs strategies in order and returns the first non-nil
// result. Errors are logged and the next tier runs. It stops early only when
// ctx is done.
func FirstSuccess(ctx context.Context, log zerolog.Logger, strategies ...Strategy) (*Analysis, error) {
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.Run(ctx)
		if err != nil {
			log.Warn().Err(err).Str("strategy", s.Name).Msg("Analysis strategy failed")
			continue
		}
		if result == nil {
			log.Debug().Str("strategy", s.Name).Msg("Analysis strategy had no result")
			continue
		}

		if result.Source == "" {
			result.Source = s.Name
		}
		return result, nil
	}
	return nil, ErrNoResult
}

// Static wraps a network-free builder as a strategy
func Static(name string, build func() *Analysis) Strategy {
	return Strategy{
		Name: name,
		Run: func(context.Context) (*Analysis, error) {
			return build(), nil
		},
	}
}
