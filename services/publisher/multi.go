package publisher

import (
	"context"
	"errors"
)

// MultiPublisher fans records out to several sinks. Every sink is tried;
// the errors are joined.
type MultiPublisher []Publisher

// Publish implements Publisher
func (m MultiPublisher) Publish(ctx context.Context, records []Record) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Publisher
func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
