// Package queue owns token assignment, status transitions and per-doctor
// ordering of the waiting room.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"healthplus-server/internal/apperr"
	"healthplus-server/internal/derive"
	"healthplus-server/internal/events"
	"healthplus-server/internal/models"
	"healthplus-server/internal/store"
)

// Service implements the queue operations. Atomicity of each mutation is the
// store's job; the service adds ownership checks and event publishing.
type Service struct {
	store store.QueueRepository
	bus   events.Bus
	now   func() time.Time
}

// NewService creates a queue Service. bus may be nil.
func NewService(s store.QueueRepository, bus events.Bus) *Service {
	return &Service{store: s, bus: bus, now: time.Now}
}

// EntryStatus is an entry with the values derived from its doctor's active queue.
type EntryStatus struct {
	Entry                models.QueueEntry `json:"entry"`
	Position             int               `json:"position"`
	EstimatedWaitMinutes int               `json:"estimatedWaitMinutes"`
	ServingToken         int               `json:"servingToken"`
}

// AdvanceResult reports a call-next step.
type AdvanceResult struct {
	Advanced bool               `json:"advanced"`
	Finished *models.QueueEntry `json:"finished,omitempty"`
	Serving  *models.QueueEntry `json:"serving,omitempty"`
}

// JoinQueue puts the calling patient at the back of the doctor's queue.
func (s *Service) JoinQueue(ctx context.Context, caller models.Caller, doctorID string) (*models.QueueEntry, error) {
	if caller.Role != models.RolePatient {
		return nil, apperr.Forbidden("only patients can join a queue")
	}
	if strings.TrimSpace(doctorID) == "" {
		return nil, apperr.Validation("doctorId is required")
	}

	entry, err := s.store.Enqueue(ctx, doctorID, caller.ID)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("doctor_id", doctorID).
		Str("patient_id", caller.ID).
		Int("token", entry.TokenNumber).
		Msg("patient joined queue")
	s.publish(ctx, events.QueueJoined, entry)
	return entry, nil
}

// CallNext finishes the patient being served and calls the lowest waiting token.
// It is a no-op on an empty queue.
func (s *Service) CallNext(ctx context.Context, caller models.Caller, doctorID string) (AdvanceResult, error) {
	if !caller.IsDoctor(doctorID) {
		return AdvanceResult{}, apperr.Forbidden("only the doctor can advance their own queue")
	}

	res, err := s.store.Advance(ctx, doctorID)
	if err != nil {
		return AdvanceResult{}, err
	}
	out := AdvanceResult{Advanced: res.Advanced(), Finished: res.Finished, Serving: res.Serving}
	if !out.Advanced {
		return out, nil
	}

	evt := log.Info().Str("doctor_id", doctorID)
	if res.Finished != nil {
		evt = evt.Int("finished_token", res.Finished.TokenNumber)
	}
	if res.Serving != nil {
		evt = evt.Int("serving_token", res.Serving.TokenNumber)
	}
	evt.Msg("queue advanced")

	subject := res.Serving
	if subject == nil {
		subject = res.Finished
	}
	s.publish(ctx, events.QueueAdvanced, subject)
	return out, nil
}

// EndSession marks the patient being served as done, if any. The returned
// entry is nil when nobody was being served.
func (s *Service) EndSession(ctx context.Context, caller models.Caller, doctorID string) (*models.QueueEntry, error) {
	if !caller.IsDoctor(doctorID) {
		return nil, apperr.Forbidden("only the doctor can end their own session")
	}

	finished, err := s.store.FinishServing(ctx, doctorID)
	if err != nil || finished == nil {
		return finished, err
	}
	log.Info().Str("doctor_id", doctorID).Int("token", finished.TokenNumber).Msg("session ended")
	s.publish(ctx, events.SessionEnded, finished)
	return finished, nil
}

// SubmitTriage records the patient's complaint and symptoms on their own entry.
// Repeated calls overwrite.
func (s *Service) SubmitTriage(ctx context.Context, caller models.Caller, entryID, complaint, symptoms string) (*models.QueueEntry, error) {
	entry, err := s.store.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !caller.IsPatient(entry.PatientID) {
		return nil, apperr.Forbidden("only the patient holding this token can submit triage info")
	}

	updated, err := s.store.UpdateTriage(ctx, entryID, strings.TrimSpace(complaint), strings.TrimSpace(symptoms))
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TriageUpdated, updated)
	return updated, nil
}

// ActiveQueue returns the doctor's entries that are not done, ordered by token.
func (s *Service) ActiveQueue(ctx context.Context, doctorID string) ([]models.QueueEntry, error) {
	return s.store.ActiveQueue(ctx, doctorID)
}

// Status reports the entry's position and wait estimate. Only the patient
// holding the entry and its doctor may read it. Done entries report zero.
func (s *Service) Status(ctx context.Context, caller models.Caller, entryID string) (*EntryStatus, error) {
	entry, err := s.store.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !caller.IsPatient(entry.PatientID) && !caller.IsDoctor(entry.DoctorID) {
		return nil, apperr.Forbidden("not allowed to view this queue entry")
	}

	active, err := s.store.ActiveQueue(ctx, entry.DoctorID)
	if err != nil {
		return nil, err
	}
	status := &EntryStatus{Entry: *entry, ServingToken: derive.ServingToken(entry.DoctorID, active)}
	if entry.Status != models.QueueDone {
		status.Position = derive.QueuePosition(*entry, active)
		status.EstimatedWaitMinutes = derive.EstimatedWaitMinutes(status.Position)
	}
	return status, nil
}

// Subscribe streams queue events for the doctor until ctx ends.
func (s *Service) Subscribe(ctx context.Context, doctorID string) (<-chan events.Event, error) {
	if s.bus == nil {
		return nil, apperr.Validation("live queue updates are not enabled")
	}
	return s.bus.Subscribe(ctx, doctorID)
}

func (s *Service) publish(ctx context.Context, typ events.Type, entry *models.QueueEntry) {
	if s.bus == nil || entry == nil {
		return
	}
	e := events.Event{
		Type:        typ,
		DoctorID:    entry.DoctorID,
		EntryID:     entry.ID,
		TokenNumber: entry.TokenNumber,
		At:          s.now(),
	}
	if err := s.bus.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("doctor_id", entry.DoctorID).Str("event", string(typ)).Msg("failed to publish queue event")
	}
}
