package httpapi

import (
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/services"
)

type checkInRequest struct {
	QRData          string `json:"qrData"`
	ScannerDeviceID string `json:"scannerDeviceId"`
	AttendeeID      string `json:"attendeeId"`
}

type attendeeView struct {
	ID                  string     `json:"id"`
	EventID             string     `json:"eventId"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Email               string     `json:"email,omitempty"`
	Company             string     `json:"company,omitempty"`
	DietaryRestrictions string     `json:"dietaryRestrictions,omitempty"`
	CheckedIn           bool       `json:"checkedIn"`
	CheckedInAt         *time.Time `json:"checkedInAt,omitempty"`
}

type eventView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type checkInResponse struct {
	Error            string        `json:"error,omitempty"`
	Success          bool          `json:"success"`
	AlreadyCheckedIn bool          `json:"alreadyCheckedIn,omitempty"`
	Outcome          string        `json:"outcome"`
	Message          string        `json:"message"`
	Attendee         *attendeeView `json:"attendee,omitempty"`
	Event            *eventView    `json:"event,omitempty"`
}

type refreshQRRequest struct {
	ID      string `json:"id"`
	EventID string `json:"eventId"`
}

type refreshQRResponse struct {
	QRPayload string    `json:"qrPayload"`
	ExpiresAt time.Time `json:"expiresAt"`
	ImageURL  string    `json:"imageUrl,omitempty"`
}

type bulkRequest struct {
	EventID string `json:"eventId"`
	Confirm bool   `json:"confirm"`
}

type bulkResponse struct {
	Success   bool     `json:"success"`
	Refreshed int      `json:"refreshed"`
	Failed    int      `json:"failed"`
	Total     int      `json:"total"`
	Errors    []string `json:"errors"`
}

type snapshotAttendee struct {
	ID          string     `json:"id"`
	EventID     string     `json:"eventId"`
	EventName   string     `json:"eventName,omitempty"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email,omitempty"`
	Company     string     `json:"company,omitempty"`
	CheckedIn   bool       `json:"checkedIn"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
	QRToken     *string    `json:"qrToken"`
	QRExpiresAt *time.Time `json:"qrExpiresAt"`
}

type snapshotResponse struct {
	CachedAt       time.Time          `json:"cachedAt"`
	DefaultEventID string             `json:"defaultEventId"`
	Events         []eventView        `json:"events"`
	Attendees      []snapshotAttendee `json:"attendees"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func toAttendeeView(a *models.Attendee) *attendeeView {
	if a == nil {
		return nil
	}
	return &attendeeView{
		ID:                  a.ID,
		EventID:             a.EventID,
		FirstName:           a.FirstName,
		LastName:            a.LastName,
		Email:               a.Email,
		Company:             a.Company,
		DietaryRestrictions: a.DietaryRestrictions,
		CheckedIn:           a.CheckedIn,
		CheckedInAt:         a.CheckedInAt,
	}
}

func toEventView(e *models.Event) *eventView {
	if e == nil {
		return nil
	}
	return &eventView{ID: e.ID, Name: e.Name}
}

func toCheckInResponse(r *services.CheckInResult) checkInResponse {
	return checkInResponse{
		Success:          r.Success(),
		AlreadyCheckedIn: r.Outcome == services.OutcomeAlreadyCheckedIn,
		Outcome:          string(r.Outcome),
		Message:          r.Message,
		Attendee:         toAttendeeView(r.Attendee),
		Event:            toEventView(r.Event),
	}
}

func toSnapshotResponse(s *services.Snapshot) snapshotResponse {
	out := snapshotResponse{
		CachedAt:       s.CachedAt,
		DefaultEventID: s.DefaultEventID,
		Events:         make([]eventView, 0, len(s.Events)),
		Attendees:      make([]snapshotAttendee, 0, len(s.Attendees)),
	}
	for _, e := range s.Events {
		out.Events = append(out.Events, eventView{ID: e.ID, Name: e.Name})
	}
	for _, a := range s.Attendees {
		out.Attendees = append(out.Attendees, snapshotAttendee{
			ID:          a.ID,
			EventID:     a.EventID,
			EventName:   a.EventName,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Email:       a.Email,
			Company:     a.Company,
			CheckedIn:   a.CheckedIn,
			CheckedInAt: a.CheckedInAt,
			QRToken:     a.QRToken,
			QRExpiresAt: a.QRExpiresAt,
		})
	}
	return out
}
