package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthplus-server/internal/apperr"
	"healthplus-server/internal/events"
	"healthplus-server/internal/models"
	"healthplus-server/internal/store"
)

type fixture struct {
	store  *store.MemoryStore
	bus    *events.LocalBus
	svc    *Service
	doctor models.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	bus := events.NewLocalBus()
	t.Cleanup(func() { _ = bus.Close() })

	d := &models.Doctor{Name: "Dr. Vijay", Email: "vijay@health.plus"}
	require.NoError(t, st.CreateDoctor(context.Background(), d))

	return &fixture{
		store:  st,
		bus:    bus,
		svc:    NewService(st, bus),
		doctor: models.Caller{ID: d.ID, Role: models.RoleDoctor},
	}
}

func (f *fixture) patient(t *testing.T, code string) models.Caller {
	t.Helper()
	p := &models.Patient{PatientID: code, Name: code, Email: code + "@example.com"}
	require.NoError(t, f.store.CreatePatient(context.Background(), p))
	return models.Caller{ID: p.ID, Role: models.RolePatient}
}

func (f *fixture) statusOf(t *testing.T, entryID string) models.QueueStatus {
	t.Helper()
	e, err := f.store.GetQueueEntry(context.Background(), entryID)
	require.NoError(t, err)
	return e.Status
}

func TestService_Scenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.patient(t, "A")
	b := f.patient(t, "B")

	ea, err := f.svc.JoinQueue(ctx, a, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ea.TokenNumber)
	assert.Equal(t, models.QueueWaiting, ea.Status)

	eb, err := f.svc.JoinQueue(ctx, b, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, eb.TokenNumber)

	res, err := f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Nil(t, res.Finished)
	assert.Equal(t, models.QueueServing, f.statusOf(t, ea.ID))
	assert.Equal(t, models.QueueWaiting, f.statusOf(t, eb.ID))

	_, err = f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueDone, f.statusOf(t, ea.ID))
	assert.Equal(t, models.QueueServing, f.statusOf(t, eb.ID))

	finished, err := f.svc.EndSession(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)
	require.NotNil(t, finished)
	assert.Equal(t, eb.ID, finished.ID)
	assert.Equal(t, models.QueueDone, f.statusOf(t, eb.ID))

	active, err := f.svc.ActiveQueue(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestService_TokensHaveNoGaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 30
	callers := make([]models.Caller, n)
	for i := range callers {
		callers[i] = f.patient(t, fmt.Sprintf("P%02d", i))
	}

	var wg sync.WaitGroup
	seen := make(chan int, n)
	for _, c := range callers {
		wg.Add(1)
		go func(c models.Caller) {
			defer wg.Done()
			e, err := f.svc.JoinQueue(ctx, c, f.doctor.ID)
			if assert.NoError(t, err) {
				seen <- e.TokenNumber
			}
		}(c)
	}
	wg.Wait()
	close(seen)

	tokens := map[int]bool{}
	for tok := range seen {
		assert.False(t, tokens[tok], "token %d assigned twice", tok)
		tokens[tok] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, tokens[i], "token %d missing", i)
	}
}

func TestService_CallNextOnEmptyQueueIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		res, err := f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
		require.NoError(t, err)
		assert.False(t, res.Advanced)
	}
	finished, err := f.svc.EndSession(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)
	assert.Nil(t, finished)
}

func TestService_CallNextFinishesLastPatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.patient(t, "A")
	ea, err := f.svc.JoinQueue(ctx, a, f.doctor.ID)
	require.NoError(t, err)

	_, err = f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)
	res, err := f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)

	assert.True(t, res.Advanced)
	assert.Nil(t, res.Serving)
	assert.Equal(t, ea.ID, res.Finished.ID)
}

func TestService_AtMostOneServing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		_, err := f.svc.JoinQueue(ctx, f.patient(t, fmt.Sprintf("P%d", i)), f.doctor.ID)
		require.NoError(t, err)
	}

	ops := []func() error{
		func() error { _, err := f.svc.CallNext(ctx, f.doctor, f.doctor.ID); return err },
		func() error { _, err := f.svc.EndSession(ctx, f.doctor, f.doctor.ID); return err },
	}
	for step := 0; step < 12; step++ {
		require.NoError(t, ops[step%2]())

		active, err := f.svc.ActiveQueue(ctx, f.doctor.ID)
		require.NoError(t, err)
		serving := 0
		for _, e := range active {
			if e.Status == models.QueueServing {
				serving++
			}
		}
		assert.LessOrEqual(t, serving, 1, "step %d", step)
	}
}

func TestService_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.patient(t, "A")
	b := f.patient(t, "B")
	otherDoctor := models.Caller{ID: "someone-else", Role: models.RoleDoctor}

	_, err := f.svc.JoinQueue(ctx, f.doctor, f.doctor.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	ea, err := f.svc.JoinQueue(ctx, a, f.doctor.ID)
	require.NoError(t, err)

	_, err = f.svc.CallNext(ctx, otherDoctor, f.doctor.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.CallNext(ctx, a, f.doctor.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.EndSession(ctx, otherDoctor, f.doctor.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.SubmitTriage(ctx, b, ea.ID, "cough", "")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.SubmitTriage(ctx, f.doctor, ea.ID, "cough", "")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.Status(ctx, b, ea.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.Status(ctx, f.doctor, ea.ID)
	assert.NoError(t, err)
}

func TestService_JoinQueueValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.patient(t, "A")

	_, err := f.svc.JoinQueue(ctx, a, " ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.JoinQueue(ctx, a, "no-such-doctor")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	ghost := models.Caller{ID: "deleted-patient", Role: models.RolePatient}
	_, err = f.svc.JoinQueue(ctx, ghost, f.doctor.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.JoinQueue(ctx, a, f.doctor.ID)
	require.NoError(t, err)
	_, err = f.svc.JoinQueue(ctx, a, f.doctor.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestService_SubmitTriage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.patient(t, "A")
	ea, err := f.svc.JoinQueue(ctx, a, f.doctor.ID)
	require.NoError(t, err)

	got, err := f.svc.SubmitTriage(ctx, a, ea.ID, "  chest pain ", "shortness of breath")
	require.NoError(t, err)
	assert.Equal(t, "chest pain", got.Complaint)
	assert.Equal(t, "shortness of breath", got.Symptoms)

	got, err = f.svc.SubmitTriage(ctx, a, ea.ID, "chest pain", "")
	require.NoError(t, err)
	assert.Empty(t, got.Symptoms)

	_, err = f.svc.SubmitTriage(ctx, a, "missing", "x", "y")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _ = f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	_, _ = f.svc.EndSession(ctx, f.doctor, f.doctor.ID)
	_, err = f.svc.SubmitTriage(ctx, a, ea.ID, "too late", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.patient(t, "A")
	b := f.patient(t, "B")
	c := f.patient(t, "C")
	ea, _ := f.svc.JoinQueue(ctx, a, f.doctor.ID)
	eb, _ := f.svc.JoinQueue(ctx, b, f.doctor.ID)
	ec, _ := f.svc.JoinQueue(ctx, c, f.doctor.ID)

	st, err := f.svc.Status(ctx, c, ec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Position)
	assert.Equal(t, 30, st.EstimatedWaitMinutes)
	assert.Equal(t, 0, st.ServingToken)

	_, err = f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)

	st, err = f.svc.Status(ctx, a, ea.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, st.Position, 0)
	assert.Equal(t, 0, st.EstimatedWaitMinutes)
	assert.Equal(t, 1, st.ServingToken)

	st, err = f.svc.Status(ctx, b, eb.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Position)
	assert.Equal(t, 10, st.EstimatedWaitMinutes)

	_, _ = f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	st, err = f.svc.Status(ctx, a, ea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueDone, st.Entry.Status)
	assert.Zero(t, st.Position)
	assert.Zero(t, st.EstimatedWaitMinutes)
}

func TestService_PublishesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	a := f.patient(t, "A")

	ch, err := f.svc.Subscribe(ctx, f.doctor.ID)
	require.NoError(t, err)

	ea, err := f.svc.JoinQueue(ctx, a, f.doctor.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitTriage(ctx, a, ea.ID, "cough", "")
	require.NoError(t, err)
	_, err = f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)
	_, err = f.svc.EndSession(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)
	// no-op calls publish nothing
	_, err = f.svc.CallNext(ctx, f.doctor, f.doctor.ID)
	require.NoError(t, err)

	want := []events.Type{events.QueueJoined, events.TriageUpdated, events.QueueAdvanced, events.SessionEnded}
	for _, typ := range want {
		select {
		case e := <-ch:
			assert.Equal(t, typ, e.Type)
			assert.Equal(t, f.doctor.ID, e.DoctorID)
			assert.Equal(t, ea.ID, e.EntryID)
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", typ)
		}
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

type failingBus struct{ *events.LocalBus }

func (failingBus) Publish(context.Context, events.Event) error {
	return errors.New("redis down")
}

func TestService_PublishFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	d := &models.Doctor{Name: "Dr. Ajith", Email: "ajith@health.plus"}
	require.NoError(t, st.CreateDoctor(ctx, d))
	p := &models.Patient{PatientID: "P1", Name: "P1", Email: "p1@example.com"}
	require.NoError(t, st.CreatePatient(ctx, p))

	svc := NewService(st, failingBus{events.NewLocalBus()})
	e, err := svc.JoinQueue(ctx, models.Caller{ID: p.ID, Role: models.RolePatient}, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.TokenNumber)
}

func TestService_SubscribeWithoutBus(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)
	_, err := svc.Subscribe(context.Background(), "d1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
