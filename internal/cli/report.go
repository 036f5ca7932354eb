package cli

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/digitalmira/internal/common"
	"github.com/dmitrijs2005/digitalmira/internal/identity"
	"github.com/dmitrijs2005/digitalmira/internal/storebuilder"
)

// describe turns a command error into the line shown to the user.
func describe(err error) string {
	var verr *identity.ValidationError
	switch {
	case errors.As(err, &verr):
		msgs := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			msgs = append(msgs, f.Message)
		}
		return "Please fix the following: " + strings.Join(msgs, "; ")
	case errors.Is(err, common.ErrDuplicateEmail):
		return "An account with this email already exists"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, common.ErrAlreadyAuthenticated):
		return "You are already signed in. Log out first."
	case errors.Is(err, common.ErrNotAuthenticated):
		return "Please log in first."
	case errors.Is(err, storebuilder.ErrUnknownComponent):
		return "Unknown component. Type 'components' to see the list."
	case errors.Is(err, storebuilder.ErrIndexOutOfRange):
		return "No component at that position. Type 'layout' to see the canvas."
	case errors.Is(err, common.ErrStorageUnavailable), errors.Is(err, common.ErrCorruptData):
		return "Storage problem: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
