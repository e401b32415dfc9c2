package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/validate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// emergencyMessage prefixes the map link sent to the emergency contact.
const emergencyMessage = "Este é um pedido de emergência! Por favor, clique no link abaixo para ver minha localização em tempo real:\n\n"

// ContactSource reads a user's ordered contact list.
type ContactSource interface {
	Contacts(ctx context.Context, uid string) ([]domain.EmergencyContact, error)
}

// Launcher opens a deep link in the messaging app. It is fire-and-forget:
// a nil error only means the link was handed over.
type Launcher interface {
	Launch(ctx context.Context, link string) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, link string) error

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, link string) error { return f(ctx, link) }

// Dispatch is the outcome of a location dispatch.
type Dispatch struct {
	Contact  string           `json:"contact"`
	Phone    string           `json:"phone"`
	Location capture.Location `json:"location"`
	Message  string           `json:"message"`
	Link     string           `json:"link"`
}

// DispatchService sends the user's position to their emergency contact.
type DispatchService struct {
	Contacts ContactSource
	Launcher Launcher
	Log      zerolog.Logger
}

// Dispatch reads loc once, composes the map message and hands a WhatsApp
// link for the first contact of the list to the Launcher. There is no
// fallback channel.
func (s *DispatchService) Dispatch(ctx context.Context, userID string, loc capture.Locator) (Dispatch, error) {
	tr := otel.Tracer("services/DispatchService")
	ctx, span := tr.Start(ctx, "Dispatch", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return Dispatch{}, ErrUnauthenticated
	}

	list, err := s.Contacts.Contacts(ctx, userID)
	if err != nil {
		s.Log.Error().Err(err).Str("user_id", userID).Msg("contact list fetch failed")
		return Dispatch{}, err
	}
	if len(list) == 0 {
		return Dispatch{}, ErrNoEmergencyContact
	}
	number, ok := list[0].PrimaryNumber()
	if !ok {
		return Dispatch{}, ErrNoEmergencyContact
	}

	pos, err := loc.Locate(ctx)
	if err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("location read failed")
		return Dispatch{}, errors.Join(ErrLocationUnavailable, err)
	}

	d := Dispatch{
		Contact:  list[0].Name,
		Phone:    number,
		Location: pos,
		Message:  EmergencyMessage(pos),
	}
	d.Link = WhatsAppLink(number, d.Message)
	if s.Launcher != nil {
		if err := s.Launcher.Launch(ctx, d.Link); err != nil {
			s.Log.Error().Err(err).Str("user_id", userID).Msg("messaging app launch failed")
			return d, fmt.Errorf("launch messaging app: %w", err)
		}
	}
	return d, nil
}

// EmergencyMessage composes the text sent to the emergency contact.
func EmergencyMessage(pos capture.Location) string {
	return emergencyMessage + "https://www.google.com/maps?q=" +
		strconv.FormatFloat(pos.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(pos.Longitude, 'f', -1, 64)
}

// WhatsAppLink builds the deep link that opens a pre-filled chat with phone.
// The number is reduced to digits; the text is percent-encoded.
func WhatsAppLink(phone, text string) string {
	return "whatsapp://send?phone=" + validate.Digits(phone) + "&text=" + encodeURIComponent(text)
}

// encodeURIComponent escapes like the JavaScript function of the same name:
// spaces become %20 and !'()* are kept.
func encodeURIComponent(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	for _, r := range []string{"!", "'", "(", ")", "*"} {
		e = strings.ReplaceAll(e, url.QueryEscape(r), r)
	}
	return e
}
