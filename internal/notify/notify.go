// Package notify presents reminder notifications to the user.
package notify

import (
	"context"
	"errors"
)

// Presenter shows a notification. Presenting the same key again replaces the
// previous notification for that key instead of adding another one.
type Presenter interface {
	Present(ctx context.Context, key int64, title, body string) error
}

// Multi fans a notification out to every presenter and joins their errors.
type Multi []Presenter

func (m Multi) Present(ctx context.Context, key int64, title, body string) error {
	var errs []error
	for _, p := range m {
		if err := p.Present(ctx, key, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
