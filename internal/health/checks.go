package health

import (
	"context"
	"errors"

	"github.com/MrWong99/hearscribe/pkg/provider/llm"
)

// Pinger is implemented by dependencies that can verify they are usable,
// such as the blob store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a [Checker] that calls p.Ping.
func Ping(name string, p Pinger) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("not configured")
			}
			return p.Ping(ctx)
		},
	}
}

// Gateway returns a [Checker] that passes when a generative provider is
// configured. With requireVideo it also checks that the provider accepts
// video input. It makes no network call.
func Gateway(name string, p llm.Provider, requireVideo bool) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if p == nil {
				return errors.New("no provider configured")
			}
			if requireVideo && !p.Capabilities().SupportsVideo {
				return errors.New("provider does not accept video input")
			}
			return nil
		},
	}
}
