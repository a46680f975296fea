// Package qrcodec encodes and decodes the string carried inside attendee QR
// codes.
//
// Two layouts exist:
//
//	v2         eventId:entryId:token
//	v1-legacy  entryId:token   (event implied by the default event)
//
// Identifiers are canonical UUIDs and the token is opaque, so ':' never
// occurs inside a field and no escaping is needed.
package qrcodec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/google/uuid"
)

// Separator splits payload fields.
const Separator = ":"

// Format tags which payload layout was decoded.
type Format string

const (
	FormatV2       Format = "v2"
	FormatV1Legacy Format = "v1-legacy"
)

var (
	ErrInvalidFormat     = errors.New("invalid qr payload format")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Payload is the decoded form of a QR string. EventID is always populated;
// for legacy payloads it comes from the default-event resolver.
type Payload struct {
	EventID string
	EntryID string
	Token   string
	Format  Format
}

// Legacy reports whether the payload used the two-part layout.
func (p Payload) Legacy() bool {
	return p.Format == FormatV1Legacy
}

// String re-encodes the payload in the v2 layout.
func (p Payload) String() string {
	return strings.Join([]string{p.EventID, p.EntryID, p.Token}, Separator)
}

// EventResolver yields the default event id used for legacy payloads.
type EventResolver func(ctx context.Context) (string, error)

// IsUUID accepts canonical 36-character RFC 4122 UUIDs, versions 1 to 5.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	v := id.Version()
	return v >= 1 && v <= 5 && id.Variant() == uuid.RFC4122
}

// Encode builds a v2 payload. Both identifiers must be UUIDs and the token
// must be non-empty and free of separators.
func Encode(eventID, entryID, token string) (string, error) {
	if !IsUUID(eventID) {
		return "", fmt.Errorf("%w: event id %q", ErrInvalidIdentifier, eventID)
	}
	if !IsUUID(entryID) {
		return "", fmt.Errorf("%w: entry id %q", ErrInvalidIdentifier, entryID)
	}
	if token == "" || strings.Contains(token, Separator) {
		return "", fmt.Errorf("%w: bad token", ErrInvalidFormat)
	}
	return eventID + Separator + entryID + Separator + token, nil
}

// Decoder decodes payloads, resolving the event for legacy ones.
type Decoder struct {
	Resolve EventResolver
	Logger  logging.Logger
}

// NewDecoder returns a Decoder. A nil logger disables the legacy diagnostic.
func NewDecoder(resolve EventResolver, logger logging.Logger) *Decoder {
	return &Decoder{Resolve: resolve, Logger: logger}
}

// Decode parses raw. Shape and identifier problems yield ErrInvalidFormat;
// a failing resolver error is returned wrapped and unchanged in kind.
func (d *Decoder) Decode(ctx context.Context, raw string) (Payload, error) {
	parts := strings.Split(strings.TrimSpace(raw), Separator)
	for _, p := range parts {
		if p == "" {
			return Payload{}, ErrInvalidFormat
		}
	}

	switch len(parts) {
	case 3:
		if !IsUUID(parts[0]) || !IsUUID(parts[1]) {
			return Payload{}, fmt.Errorf("%w: malformed identifier", ErrInvalidFormat)
		}
		return Payload{EventID: parts[0], EntryID: parts[1], Token: parts[2], Format: FormatV2}, nil

	case 2:
		if !IsUUID(parts[0]) {
			return Payload{}, fmt.Errorf("%w: malformed identifier", ErrInvalidFormat)
		}
		if d.Resolve == nil {
			return Payload{}, errors.New("no default event resolver configured")
		}
		eventID, err := d.Resolve(ctx)
		if err != nil {
			return Payload{}, fmt.Errorf("resolve default event: %w", err)
		}
		if d.Logger != nil {
			d.Logger.Warn(ctx, "legacy qr payload decoded", "entry_id", parts[0], "event_id", eventID)
		}
		return Payload{EventID: eventID, EntryID: parts[0], Token: parts[1], Format: FormatV1Legacy}, nil

	default:
		return Payload{}, ErrInvalidFormat
	}
}

// Decode is a convenience wrapper around Decoder without logging.
func Decode(ctx context.Context, raw string, resolve EventResolver) (Payload, error) {
	return (&Decoder{Resolve: resolve}).Decode(ctx, raw)
}
