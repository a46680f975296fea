package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/dmitrijs2005/doorkeeper/internal/mq"
	"github.com/dmitrijs2005/doorkeeper/internal/netx"
	"github.com/dmitrijs2005/doorkeeper/internal/obs"
	"github.com/dmitrijs2005/doorkeeper/internal/qrcodec"
	"github.com/dmitrijs2005/doorkeeper/internal/ratelimit"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	MethodQR     = "qr"
	MethodManual = "manual"
)

// CheckInRequest is a scan submitted by a device. Caller is the address the
// rate limit is keyed on.
type CheckInRequest struct {
	QRData   string
	DeviceID string
	Caller   string
	StaffID  string
}

// ManualCheckInRequest admits an attendee picked from the guest list.
type ManualCheckInRequest struct {
	AttendeeID string
	Caller     string
	StaffID    string
}

// CheckInService decides check-ins. Every attempt is rate limited first and
// recorded in the audit trail afterwards, whatever the outcome.
type CheckInService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	limiter     ratelimit.Limiter
	decoder     *qrcodec.Decoder
	publisher   mq.Publisher
	logger      logging.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewCheckInService(db *sql.DB, m repomanager.RepositoryManager, limiter ratelimit.Limiter,
	resolver *DefaultEventResolver, publisher mq.Publisher, logger logging.Logger) *CheckInService {
	if publisher == nil {
		publisher = mq.Nop{}
	}
	var resolve qrcodec.EventResolver
	if resolver != nil {
		resolve = resolver.Resolve
	}
	return &CheckInService{
		db:          db,
		repomanager: m,
		limiter:     limiter,
		decoder:     qrcodec.NewDecoder(resolve, logger),
		publisher:   publisher,
		logger:      logger,
		tracer:      obs.Tracer("doorkeeper/checkin"),
		now:         time.Now,
	}
}

// CheckIn redeems a scanned payload. Only infrastructure failures are
// returned as errors; every rejection is a result.
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkin.qr")
	defer span.End()

	attempt := &models.CheckInAttempt{Caller: callerKey(req.Caller), DeviceID: req.DeviceID, StaffID: req.StaffID}
	res, err := s.checkIn(ctx, req, attempt)
	s.finish(ctx, span, attempt, res, err, MethodQR)
	return res, err
}

// CheckInAttendee admits an attendee by id without a token.
func (s *CheckInService) CheckInAttendee(ctx context.Context, req ManualCheckInRequest) (*CheckInResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkin.manual")
	defer span.End()

	attempt := &models.CheckInAttempt{Caller: callerKey(req.Caller), AttendeeID: req.AttendeeID, StaffID: req.StaffID}
	res, err := s.checkInAttendee(ctx, req, attempt)
	s.finish(ctx, span, attempt, res, err, MethodManual)
	return res, err
}

func (s *CheckInService) checkIn(ctx context.Context, req CheckInRequest, attempt *models.CheckInAttempt) (*CheckInResult, error) {
	if res := s.limit(ctx, attempt.Caller); res != nil {
		return res, nil
	}

	if strings.TrimSpace(req.QRData) == "" {
		return result(OutcomeInvalidFormat, MsgQRDataRequired), nil
	}

	p, err := s.decoder.Decode(ctx, req.QRData)
	switch {
	case err == nil:
	case errors.Is(err, qrcodec.ErrInvalidFormat), errors.Is(err, qrcodec.ErrInvalidIdentifier):
		attempt.Detail = err.Error()
		return result(OutcomeInvalidFormat, MsgInvalidFormat), nil
	case errors.Is(err, common.ErrorNotFound):
		attempt.Detail = err.Error()
		return result(OutcomeNotFound, MsgEventNotFound), nil
	default:
		return nil, err
	}
	attempt.EventID, attempt.AttendeeID = p.EventID, p.EntryID

	ev, err := s.repomanager.Events(s.db).GetByID(ctx, p.EventID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return result(OutcomeNotFound, MsgEventNotFound), nil
		}
		return nil, err
	}

	repo := s.repomanager.Attendees(s.db)
	a, err := repo.Redeem(ctx, p.EventID, p.EntryID, p.Token, req.DeviceID, s.now().UTC())
	if err == nil {
		return &CheckInResult{Outcome: OutcomeSuccess, Message: successMessage(a), Attendee: a, Event: ev}, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	return s.diagnose(ctx, p, ev, attempt)
}

// diagnose explains a redeem that matched nothing. The lookup is by id
// alone so an id used under the wrong event still reads as invalid.
func (s *CheckInService) diagnose(ctx context.Context, p qrcodec.Payload, ev *models.Event, attempt *models.CheckInAttempt) (*CheckInResult, error) {
	a, err := s.repomanager.Attendees(s.db).FindByID(ctx, p.EntryID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			attempt.Detail = "unknown attendee"
			return result(OutcomeInvalidOrExpired, MsgInvalidOrExpired), nil
		}
		return nil, err
	}

	switch {
	case a.EventID != p.EventID:
		attempt.Detail = "event mismatch"
		return result(OutcomeInvalidOrExpired, MsgInvalidOrExpired), nil

	case a.Used():
		msg := alreadyMessage(a)
		if a.QRUsedAt != nil {
			msg = MsgAlreadyUsed
			attempt.Detail = "replay"
		}
		return &CheckInResult{Outcome: OutcomeAlreadyCheckedIn, Message: msg, Attendee: a, Event: ev}, nil

	case a.QRToken == nil:
		attempt.Detail = "no outstanding token"
		return result(OutcomeInvalidOrExpired, MsgInvalidOrExpired), nil

	case *a.QRToken != p.Token:
		attempt.Detail = "token mismatch"
		return result(OutcomeInvalidOrExpired, MsgInvalidOrExpired), nil

	case a.QRExpiresAt == nil:
		attempt.Detail = "token without expiry"
		return result(OutcomeInvalidOrExpired, MsgInvalidOrExpired), nil

	case a.TokenExpired(s.now()):
		return result(OutcomeExpired, MsgExpired), nil
	}

	// the row changed between the redeem and the lookup
	attempt.Detail = "raced"
	return result(OutcomeInvalidOrExpired, MsgInvalidOrExpired), nil
}

func (s *CheckInService) checkInAttendee(ctx context.Context, req ManualCheckInRequest, attempt *models.CheckInAttempt) (*CheckInResult, error) {
	if res := s.limit(ctx, attempt.Caller); res != nil {
		return res, nil
	}

	if !qrcodec.IsUUID(req.AttendeeID) {
		return result(OutcomeInvalidFormat, MsgInvalidAttendee), nil
	}

	repo := s.repomanager.Attendees(s.db)
	a, err := repo.FindByID(ctx, req.AttendeeID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return result(OutcomeNotFound, MsgAttendeeNotFound), nil
		}
		return nil, err
	}
	attempt.EventID = a.EventID

	ev, err := s.repomanager.Events(s.db).GetByID(ctx, a.EventID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	if a.CheckedIn {
		return &CheckInResult{Outcome: OutcomeAlreadyCheckedIn, Message: alreadyMessage(a), Attendee: a, Event: ev}, nil
	}

	updated, err := repo.MarkCheckedIn(ctx, a.ID, s.now().UTC())
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		// admitted concurrently by someone else
		attempt.Detail = "raced"
		if fresh, ferr := repo.FindByID(ctx, a.ID); ferr == nil {
			a = fresh
		}
		return &CheckInResult{Outcome: OutcomeAlreadyCheckedIn, Message: alreadyMessage(a), Attendee: a, Event: ev}, nil
	}

	return &CheckInResult{Outcome: OutcomeSuccess, Message: successMessage(updated), Attendee: updated, Event: ev}, nil
}

// limit returns a result when the caller is over budget. A failing limiter
// store lets the attempt through.
func (s *CheckInService) limit(ctx context.Context, caller string) *CheckInResult {
	if s.limiter == nil {
		return nil
	}
	d, err := s.limiter.Allow(ctx, caller)
	if err != nil {
		s.logger.Error(ctx, "rate limiter unavailable", "caller", caller, "error", err)
		return nil
	}
	if d.Allowed {
		return nil
	}
	return &CheckInResult{Outcome: OutcomeRateLimited, Message: MsgRateLimited, RetryAfter: d.RetryAfter}
}

func (s *CheckInService) finish(ctx context.Context, span trace.Span, attempt *models.CheckInAttempt,
	res *CheckInResult, err error, method string) {
	attempt.OccurredAt = s.now().UTC()
	if err != nil {
		attempt.Outcome = string(OutcomeError)
		attempt.Detail = err.Error()
		span.RecordError(err)
	} else {
		attempt.Outcome = string(res.Outcome)
		if res.Attendee != nil {
			attempt.AttendeeID = res.Attendee.ID
			attempt.EventID = res.Attendee.EventID
		}
	}

	span.SetAttributes(
		attribute.String("checkin.method", method),
		attribute.String("checkin.outcome", attempt.Outcome),
	)

	s.logger.Info(ctx, "check_in_attempt",
		"method", method,
		"outcome", attempt.Outcome,
		"caller", attempt.Caller,
		"attendee_id", attempt.AttendeeID,
		"event_id", attempt.EventID,
		"device_id", attempt.DeviceID,
		"detail", attempt.Detail,
	)

	if rerr := s.repomanager.CheckIns(s.db).Record(ctx, attempt); rerr != nil {
		s.logger.Error(ctx, "audit record failed", "error", rerr)
	}

	if err == nil && res.Outcome == OutcomeSuccess {
		checkedInAt := attempt.OccurredAt
		if res.Attendee.CheckedInAt != nil {
			checkedInAt = *res.Attendee.CheckedInAt
		}
		if perr := s.publisher.PublishJSON(ctx, mq.RoutingCheckedIn, mq.AttendeeCheckedIn{
			AttendeeID:  res.Attendee.ID,
			EventID:     res.Attendee.EventID,
			Method:      method,
			DeviceID:    attempt.DeviceID,
			StaffID:     attempt.StaffID,
			CheckedInAt: checkedInAt,
		}); perr != nil {
			s.logger.Warn(ctx, "publish failed", "routing_key", mq.RoutingCheckedIn, "error", perr)
		}
	}
}

func callerKey(caller string) string {
	if caller == "" {
		return netx.Unknown
	}
	return caller
}
