package grpc

import (
	pb "github.com/dmitrijs2005/doorkeeper/internal/proto"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/services"
)

func toPbAttendee(a *models.Attendee) *pb.Attendee {
	if a == nil {
		return nil
	}
	return &pb.Attendee{
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

func toPbEvent(e *models.Event) *pb.Event {
	if e == nil {
		return nil
	}
	return &pb.Event{ID: e.ID, Name: e.Name}
}

func toPbCheckIn(r *services.CheckInResult) *pb.CheckInResponse {
	return &pb.CheckInResponse{
		Outcome:           string(r.Outcome),
		Success:           r.Success(),
		AlreadyCheckedIn:  r.Outcome == services.OutcomeAlreadyCheckedIn,
		Message:           r.Message,
		Attendee:          toPbAttendee(r.Attendee),
		Event:             toPbEvent(r.Event),
		RetryAfterSeconds: int32(r.RetryAfterSeconds()),
	}
}

func toPbSnapshot(s *services.Snapshot) *pb.OfflineSnapshot {
	out := &pb.OfflineSnapshot{
		CachedAt:       s.CachedAt,
		DefaultEventID: s.DefaultEventID,
		Events:         make([]*pb.Event, 0, len(s.Events)),
		Attendees:      make([]*pb.SnapshotAttendee, 0, len(s.Attendees)),
	}
	for _, e := range s.Events {
		out.Events = append(out.Events, toPbEvent(e))
	}
	for _, a := range s.Attendees {
		sa := &pb.SnapshotAttendee{
			ID:          a.ID,
			EventID:     a.EventID,
			EventName:   a.EventName,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Email:       a.Email,
			Company:     a.Company,
			CheckedIn:   a.CheckedIn,
			CheckedInAt: a.CheckedInAt,
			QRExpiresAt: a.QRExpiresAt,
		}
		if a.QRToken != nil {
			sa.QRToken = *a.QRToken
		}
		out.Attendees = append(out.Attendees, sa)
	}
	return out
}
