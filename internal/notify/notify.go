// Package notify delivers contact form messages to operators.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillscribe/portal/internal/model"
)

// Notifier delivers one contact message to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg *model.ContactMessage) error
}

// PermanentError marks a delivery failure that retrying will not fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err or any error it wraps is permanent.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}
