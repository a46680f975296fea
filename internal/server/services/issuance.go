package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/dmitrijs2005/doorkeeper/internal/mq"
	"github.com/dmitrijs2005/doorkeeper/internal/obs"
	"github.com/dmitrijs2005/doorkeeper/internal/qrcodec"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tokenBytes is the entropy of an issued token; it is hex encoded on the wire.
const tokenBytes = 16

// ImageRenderer stores a rendered QR code and returns a URL to fetch it.
type ImageRenderer interface {
	Render(ctx context.Context, eventID, attendeeID, payload string) (string, error)
}

// IssuedToken is a freshly minted credential together with its payload.
type IssuedToken struct {
	AttendeeID string
	EventID    string
	Payload    string
	ExpiresAt  time.Time
	ImageURL   string
}

// TokenIssuer mints QR credentials. Issuing replaces whatever token the
// attendee held before.
type TokenIssuer struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	resolver    *DefaultEventResolver
	ttl         time.Duration
	publisher   mq.Publisher
	images      ImageRenderer
	logger      logging.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newToken    func() (string, error)
}

func NewTokenIssuer(db *sql.DB, m repomanager.RepositoryManager, resolver *DefaultEventResolver,
	ttl time.Duration, publisher mq.Publisher, images ImageRenderer, logger logging.Logger) *TokenIssuer {
	if publisher == nil {
		publisher = mq.Nop{}
	}
	return &TokenIssuer{
		db:          db,
		repomanager: m,
		resolver:    resolver,
		ttl:         ttl,
		publisher:   publisher,
		images:      images,
		logger:      logger,
		tracer:      obs.Tracer("doorkeeper/issuance"),
		now:         time.Now,
		newToken:    func() (string, error) { return common.MakeRandHexString(tokenBytes) },
	}
}

// Issue mints a token for attendeeID. An empty eventID falls back to the
// attendee's own event and then to the default event.
func (s *TokenIssuer) Issue(ctx context.Context, attendeeID, eventID string) (*IssuedToken, error) {
	ctx, span := s.tracer.Start(ctx, "qr.issue", trace.WithAttributes(attribute.String("attendee.id", attendeeID)))
	defer span.End()

	t, err := s.issue(ctx, attendeeID, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("event.id", t.EventID))
	return t, nil
}

func (s *TokenIssuer) issue(ctx context.Context, attendeeID, eventID string) (*IssuedToken, error) {
	if !qrcodec.IsUUID(attendeeID) {
		return nil, fmt.Errorf("%w: attendee id %q", qrcodec.ErrInvalidIdentifier, attendeeID)
	}

	repo := s.repomanager.Attendees(s.db)

	if eventID == "" {
		a, err := repo.FindByID(ctx, attendeeID)
		if err != nil {
			return nil, fmt.Errorf("error searching attendee: %w", err)
		}
		eventID = a.EventID
	}
	if eventID == "" && s.resolver != nil {
		id, err := s.resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		eventID = id
	}

	token, err := s.newToken()
	if err != nil {
		return nil, common.ErrorInternal
	}

	// encode first so a malformed id never reaches storage
	payload, err := qrcodec.Encode(eventID, attendeeID, token)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.ttl).UTC()
	if err := repo.SetToken(ctx, attendeeID, eventID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("error storing token: %w", err)
	}

	issued := &IssuedToken{
		AttendeeID: attendeeID,
		EventID:    eventID,
		Payload:    payload,
		ExpiresAt:  expiresAt,
	}

	if s.images != nil {
		url, err := s.images.Render(ctx, eventID, attendeeID, payload)
		if err != nil {
			s.logger.Warn(ctx, "qr image render failed", "attendee_id", attendeeID, "error", err)
		} else {
			issued.ImageURL = url
		}
	}

	if err := s.publisher.PublishJSON(ctx, mq.RoutingQRIssued, mq.QRIssued{
		AttendeeID: attendeeID,
		EventID:    eventID,
		Payload:    payload,
		ExpiresAt:  expiresAt,
		ImageURL:   issued.ImageURL,
	}); err != nil {
		s.logger.Warn(ctx, "publish failed", "routing_key", mq.RoutingQRIssued, "error", err)
	}

	s.logger.Info(ctx, "qr token issued", "attendee_id", attendeeID, "event_id", eventID, "expires_at", expiresAt)
	return issued, nil
}
