package idp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ProviderError is a named rejection from the identity provider. The type
// values come from the provider and are fixed: UserNotFoundException,
// UserNotConfirmedException, NotAuthorizedException, UsernameExistsException,
// CodeMismatchException, ExpiredCodeException.
type ProviderError struct {
	Action  string
	Status  int
	Type    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("idp: %s: %s: %s", e.Action, e.Type, e.Message)
}

func asProviderError(err error, target **ProviderError) bool {
	return errors.As(err, target)
}

func decodeProviderError(action string, status int, body []byte) error {
	var payload struct {
		Type    string `json:"__type"`
		Message string `json:"message"`
		Msg     string `json:"Message"`
	}
	perr := &ProviderError{Action: action, Status: status}
	if err := json.Unmarshal(body, &payload); err == nil {
		perr.Type = payload.Type
		// The service namespace may prefix the type name.
		if i := strings.LastIndexByte(perr.Type, '#'); i >= 0 {
			perr.Type = perr.Type[i+1:]
		}
		perr.Message = payload.Message
		if perr.Message == "" {
			perr.Message = payload.Msg
		}
	}
	if perr.Type == "" {
		perr.Type = "UnknownError"
	}
	if perr.Message == "" {
		perr.Message = fmt.Sprintf("%s failed with status %d", action, status)
	}
	return perr
}
