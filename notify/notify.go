// Package notify provides toast notifiers other than the chat host itself.
package notify

import (
	"context"
	"errors"

	"github.com/deepnoodle-ai/autocompact"
)

// Multi fans a toast out to several notifiers. Every notifier is called even
// when an earlier one fails; the failures are joined.
type Multi []autocompact.Notifier

var _ autocompact.Notifier = Multi(nil)

func (m Multi) ShowToast(ctx context.Context, toast autocompact.Toast) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.ShowToast(ctx, toast); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
