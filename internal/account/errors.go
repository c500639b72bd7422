package account

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rogeecn/vpsdash/internal/store"
)

// ErrUnavailable is returned (wrapped) when the hosted store cannot be reached.
var ErrUnavailable = store.ErrUnavailable

// ValidationError reports broken field rules. No store call has been made.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid account: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Fields returns the failing fields keyed by JSON name.
func (e *ValidationError) Fields() map[string]string {
	var errs validation.Errors
	if !errors.As(e.Err, &errs) {
		return nil
	}
	fields := make(map[string]string, len(errs))
	for name, err := range errs {
		fields[name] = err.Error()
	}
	return fields
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("account %q not found", e.ID)
}
