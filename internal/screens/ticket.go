package screens

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"reboot-miniapp/internal/api"
	"reboot-miniapp/internal/models"
)

type TicketAPI interface {
	GetTicket(ctx context.Context, reference string) (*models.TicketVerification, error)
}

type VerificationStatus string

const (
	StatusLoading VerificationStatus = "loading"
	StatusValid   VerificationStatus = "valid"
	StatusInvalid VerificationStatus = "invalid"
	StatusExpired VerificationStatus = "expired"
	StatusError   VerificationStatus = "error"
)

// Verification is the outcome shown on the ticket screen. Status always comes
// from the server's answer.
type Verification struct {
	Status  VerificationStatus
	Data    *models.TicketVerification
	Message string
}

func (v Verification) Text() string {
	switch v.Status {
	case StatusValid:
		return "Valid Ticket"
	case StatusExpired:
		return "Ticket Expired"
	case StatusInvalid:
		return "Invalid Ticket"
	case StatusError:
		return "Verification Error"
	default:
		return "Verifying..."
	}
}

// Tone is the colour family used to render the status.
func (v Verification) Tone() string {
	switch v.Status {
	case StatusValid:
		return "green"
	case StatusExpired:
		return "yellow"
	case StatusInvalid:
		return "red"
	case StatusError:
		return "gray"
	default:
		return "blue"
	}
}

type TicketVerification struct {
	*lifetime
	api TicketAPI
	log *zap.SugaredLogger
}

func NewTicketVerification(parent context.Context, client TicketAPI, log *zap.SugaredLogger) *TicketVerification {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TicketVerification{lifetime: newLifetime(parent), api: client, log: log}
}

func (t *TicketVerification) Verify(ctx context.Context, reference string) (Verification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Verification{Status: StatusError, Message: "No ticket reference provided"}, nil
	}

	ctx, cancel := t.bind(ctx)
	defer cancel()
	tv, err := t.api.GetTicket(ctx, reference)
	if !t.Mounted() {
		return Verification{}, ErrUnmounted
	}

	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr) && errors.Is(err, api.ErrInvalidTicket):
		return Verification{Status: StatusInvalid, Message: apiErr.Message}, nil
	case err != nil:
		t.log.Warnw("ticket verification failed", "reference", reference, "err", err)
		return Verification{Status: StatusError, Message: "Failed to verify ticket. Please try again."}, nil
	}

	v := Verification{Data: tv}
	switch tv.Ticket.Status {
	case models.TicketValid:
		v.Status = StatusValid
	case models.TicketExpired:
		v.Status = StatusExpired
	default:
		v.Status = StatusInvalid
	}
	return v, nil
}
