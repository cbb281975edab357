package dispatcher

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrPermissionDenied means the bot lacks the permission or hierarchy
	// position for an action. Callers treat it as a non-event.
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnknownResource  = errors.New("unknown resource")
	ErrRateLimited      = errors.New("rate limited")
)

// classify maps discordgo REST failures onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}

	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return errors.Join(ErrPermissionDenied, err)
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownRole,
			discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return errors.Join(ErrUnknownResource, err)
		}
	}

	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return errors.Join(ErrPermissionDenied, err)
		case http.StatusNotFound:
			return errors.Join(ErrUnknownResource, err)
		case http.StatusTooManyRequests:
			return errors.Join(ErrRateLimited, err)
		}
	}
	return err
}

func statusError(status int, body []byte) error {
	switch status {
	case http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusNotFound:
		return ErrUnknownResource
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return &HTTPError{Status: status, Body: string(body)}
}

type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return "discord api: status " + http.StatusText(e.Status) + ": " + e.Body
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
