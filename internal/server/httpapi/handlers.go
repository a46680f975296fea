package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/netx"
	"github.com/dmitrijs2005/doorkeeper/internal/qrcodec"
	"github.com/dmitrijs2005/doorkeeper/internal/server/services"
)

const msgInvalidBody = "Invalid request body"

const confirmMessage = "This will invalidate all existing QR codes for the event. " +
	"Attendees with screenshots or saved images will need new codes. Set confirm: true to proceed."

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) staffID(r *http.Request) string {
	if c, ok := claimsFrom(r.Context()); ok {
		return c.UserID
	}
	return ""
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	// A malformed body still goes through the service so it is rate limited
	// and audited like any other attempt.
	var req checkInRequest
	badBody := json.NewDecoder(r.Body).Decode(&req) != nil
	if badBody {
		req = checkInRequest{}
	}

	caller := netx.ClientIP(r, s.trustProxy)
	manual := req.AttendeeID != "" && req.QRData == ""

	var (
		res *services.CheckInResult
		err error
	)
	if manual {
		res, err = s.svc.CheckIns.CheckInAttendee(r.Context(), services.ManualCheckInRequest{
			AttendeeID: req.AttendeeID,
			Caller:     caller,
			StaffID:    s.staffID(r),
		})
	} else {
		res, err = s.svc.CheckIns.CheckIn(r.Context(), services.CheckInRequest{
			QRData:   req.QRData,
			DeviceID: req.ScannerDeviceID,
			Caller:   caller,
			StaffID:  s.staffID(r),
		})
	}
	if err != nil {
		s.logger.Error(r.Context(), "POST /api/checkin", "error", err)
		writeError(w, http.StatusInternalServerError, services.MsgInternal)
		return
	}

	if res.Outcome == services.OutcomeRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
		writeError(w, http.StatusTooManyRequests, res.Message)
		return
	}

	if badBody && res.Outcome == services.OutcomeInvalidFormat {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	status := checkInStatus(res.Outcome, manual)
	body := toCheckInResponse(res)
	if status >= http.StatusBadRequest {
		body.Error = res.Message
	}
	writeJSON(w, status, body)
}

func checkInStatus(o services.Outcome, manual bool) int {
	switch o {
	case services.OutcomeSuccess:
		return http.StatusOK
	case services.OutcomeAlreadyCheckedIn:
		if manual {
			return http.StatusOK
		}
		return http.StatusConflict
	case services.OutcomeInvalidFormat:
		return http.StatusBadRequest
	case services.OutcomeNotFound:
		return http.StatusNotFound
	case services.OutcomeInvalidOrExpired:
		return http.StatusUnauthorized
	case services.OutcomeExpired:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func (s *Server) handleRefreshQR(w http.ResponseWriter, r *http.Request) {
	var req refreshQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "Attendee ID is required")
		return
	}

	t, err := s.svc.Issuer.Issue(r.Context(), req.ID, req.EventID)
	if err != nil {
		switch {
		case errors.Is(err, qrcodec.ErrInvalidIdentifier), errors.Is(err, qrcodec.ErrInvalidFormat):
			writeError(w, http.StatusBadRequest, "Invalid attendee or event ID")
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, services.MsgAttendeeNotFound)
		default:
			s.logger.Error(r.Context(), "POST /api/attendees/refresh-qr", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to generate QR payload")
		}
		return
	}

	writeJSON(w, http.StatusOK, refreshQRResponse{QRPayload: t.Payload, ExpiresAt: t.ExpiresAt, ImageURL: t.ImageURL})
}

func (s *Server) handleRefreshQRBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := s.svc.Bulk.Refresh(r.Context(), req.EventID, req.Confirm)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrConfirmationRequired):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Confirmation required", Message: confirmMessage})
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, "No attendees found")
		default:
			s.logger.Error(r.Context(), "POST /api/attendees/refresh-qr-bulk", "error", err)
			writeError(w, http.StatusInternalServerError, "Bulk refresh failed")
		}
		return
	}

	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, bulkResponse{
		Success:   true,
		Refreshed: res.Refreshed,
		Failed:    res.Failed,
		Total:     res.Total,
		Errors:    errs,
	})
}

func (s *Server) handleOfflineCache(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshots.OfflineSnapshot(r.Context(), r.URL.Query().Get("eventId"))
	if err != nil {
		s.logger.Error(r.Context(), "GET /api/attendees/offline-cache", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch offline cache")
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}
