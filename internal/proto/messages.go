package proto

import "time"

type RegisterUserRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
	Role     string `json:"role,omitempty"`
}

type RegisterUserResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username          string `json:"username"`
	VerifierCandidate []byte `json:"verifier_candidate"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Attendee is the display view of an attendee returned with check-in results.
type Attendee struct {
	ID                  string     `json:"id"`
	EventID             string     `json:"event_id"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Email               string     `json:"email,omitempty"`
	Company             string     `json:"company,omitempty"`
	DietaryRestrictions string     `json:"dietary_restrictions,omitempty"`
	CheckedIn           bool       `json:"checked_in"`
	CheckedInAt         *time.Time `json:"checked_in_at,omitempty"`
}

type Event struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CheckInRequest struct {
	QRData   string `json:"qr_data"`
	DeviceID string `json:"device_id,omitempty"`
}

type CheckInAttendeeRequest struct {
	AttendeeID string `json:"attendee_id"`
}

// CheckInResponse carries a check-in outcome. Outcome is one of the
// check-in outcome names (success, already_checked_in, invalid_format and so on).
// Throttled calls fail with ResourceExhausted and a retry-after trailer instead.
type CheckInResponse struct {
	Outcome           string    `json:"outcome"`
	Success           bool      `json:"success"`
	AlreadyCheckedIn  bool      `json:"already_checked_in"`
	Message           string    `json:"message"`
	Attendee          *Attendee `json:"attendee,omitempty"`
	Event             *Event    `json:"event,omitempty"`
	RetryAfterSeconds int32     `json:"retry_after_seconds,omitempty"`
}

type IssueTokenRequest struct {
	AttendeeID string `json:"attendee_id"`
	EventID    string `json:"event_id,omitempty"`
}

type IssueTokenResponse struct {
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
	ImageURL  string    `json:"image_url,omitempty"`
}

type BulkRefreshRequest struct {
	EventID string `json:"event_id,omitempty"`
	Confirm bool   `json:"confirm"`
}

type BulkRefreshResponse struct {
	Refreshed int32    `json:"refreshed"`
	Failed    int32    `json:"failed"`
	Total     int32    `json:"total"`
	Errors    []string `json:"errors,omitempty"`
}

type GetOfflineSnapshotRequest struct {
	EventID string `json:"event_id,omitempty"`
}

// SnapshotAttendee is an attendee row as cached by scanner devices,
// including the outstanding credential.
type SnapshotAttendee struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	EventName   string     `json:"event_name,omitempty"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email,omitempty"`
	Company     string     `json:"company,omitempty"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	QRToken     string     `json:"qr_token,omitempty"`
	QRExpiresAt *time.Time `json:"qr_expires_at,omitempty"`
}

type OfflineSnapshot struct {
	CachedAt       time.Time           `json:"cached_at"`
	DefaultEventID string              `json:"default_event_id"`
	Events         []*Event            `json:"events"`
	Attendees      []*SnapshotAttendee `json:"attendees"`
}
