package events

import (
	"context"
	"errors"

	"shielder/internal/shielder"
)

// Fanout delivers every event to each sink in order and joins their errors.
type Fanout []shielder.EventSink

func (f Fanout) Publish(ctx context.Context, ev shielder.Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
