package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sleetbot/warden/automod/engine"

	"github.com/bwmarrin/discordgo"
)

// Wraps a discordgo error with the matching engine sentinel (ErrPermissionDenied, ErrNotFound, ErrTransient). Errors which fit none of those are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
				return fmt.Errorf("%w: %w", engine.ErrPermissionDenied, err)
			case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel,
				discordgo.ErrCodeUnknownBan, discordgo.ErrCodeUnknownInvite, discordgo.ErrCodeUnknownRole:
				return fmt.Errorf("%w: %w", engine.ErrNotFound, err)
			}
		}
		if restErr.Response != nil {
			status := restErr.Response.StatusCode
			switch {
			case status == http.StatusForbidden:
				return fmt.Errorf("%w: %w", engine.ErrPermissionDenied, err)
			case status == http.StatusNotFound:
				return fmt.Errorf("%w: %w", engine.ErrNotFound, err)
			case status == http.StatusTooManyRequests || status >= 500:
				return fmt.Errorf("%w: %w", engine.ErrTransient, err)
			}
		}
		return err
	}
	if errors.Is(err, discordgo.ErrJSONUnmarshal) {
		return fmt.Errorf("%w: %w", engine.ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", engine.ErrTransient, err)
	}
	return err
}
