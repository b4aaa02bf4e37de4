package scheduleevents

import (
	"context"
	"sync"
	"testing"
	"time"

	appointmentRepo "clinicore/database/repository/appointment"
	billingRepo "clinicore/database/repository/billing"
	patientRepo "clinicore/database/repository/patient"
	"clinicore/database/txn"
	"clinicore/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type passRunner struct{}

func (passRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestCoordinator() *txn.Coordinator {
	return &txn.Coordinator{
		Runner:      passRunner{},
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Logger:      zap.NewNop(),
	}
}

// memSchedule is an in-memory projection store keyed by (originalId, type).
type memSchedule struct {
	mu     sync.Mutex
	events map[string]models.ScheduleEvent
	// conflictUpserts makes the first N upserts fail with a write conflict.
	conflictUpserts int
}

func key(originalID string, typ models.EventType) string {
	return string(typ) + ":" + originalID
}

func newMemSchedule() *memSchedule {
	return &memSchedule{events: make(map[string]models.ScheduleEvent)}
}

func (m *memSchedule) Upsert(_ context.Context, ev *models.ScheduleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflictUpserts > 0 {
		m.conflictUpserts--
		return mongo.CommandError{Code: 112, Message: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	}
	m.events[key(ev.OriginalID, ev.Type)] = *ev
	return nil
}

func (m *memSchedule) Delete(_ context.Context, originalID string, typ models.EventType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, key(originalID, typ))
	return nil
}

func (m *memSchedule) Get(_ context.Context, originalID string, typ models.EventType) (*models.ScheduleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[key(originalID, typ)]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := ev
	return &cp, nil
}

func (m *memSchedule) ListRange(_ context.Context, doctorID, from, to string) ([]models.ScheduleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduleEvent
	for _, ev := range m.events {
		if doctorID != "" && ev.DoctorID != doctorID {
			continue
		}
		if ev.Date >= from && ev.Date <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memSchedule) ListUnpaid(_ context.Context, doctorID string) ([]models.ScheduleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduleEvent
	for _, ev := range m.events {
		if doctorID != "" && ev.DoctorID != doctorID {
			continue
		}
		if ev.PaymentStatus != models.PaymentPaid {
			out = append(out, ev)
		}
	}
	return out, nil
}

// stubBilling overrides only the lookups the synchronizer performs.
type stubBilling struct {
	billingRepo.Repository
	sessions       map[string]models.TherapySession
	packages       map[string]models.TherapyPackage
	clearedPkg     []string
	clearedSession []string
}

func (s *stubBilling) GetSessionByID(_ context.Context, id string) (*models.TherapySession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, billingRepo.ErrNotFound
	}
	cp := sess
	return &cp, nil
}

func (s *stubBilling) GetPackageByID(_ context.Context, id string) (*models.TherapyPackage, error) {
	pkg, ok := s.packages[id]
	if !ok {
		return nil, billingRepo.ErrNotFound
	}
	cp := pkg
	return &cp, nil
}

func (s *stubBilling) ListPackageSessions(_ context.Context, packageID string) ([]models.TherapySession, error) {
	var out []models.TherapySession
	for _, sess := range s.sessions {
		if sess.PackageID == packageID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *stubBilling) ClearSessionPendingSync(_ context.Context, id string) error {
	s.clearedSession = append(s.clearedSession, id)
	return nil
}

func (s *stubBilling) ClearPackagePendingSync(_ context.Context, id string) error {
	s.clearedPkg = append(s.clearedPkg, id)
	return nil
}

type stubAppointments struct {
	appointmentRepo.Repository
	appts   map[string]models.Appointment
	cleared []string
}

func (s *stubAppointments) GetByID(_ context.Context, id string) (*models.Appointment, error) {
	a, ok := s.appts[id]
	if !ok {
		return nil, appointmentRepo.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (s *stubAppointments) ClearPendingSync(_ context.Context, id string) error {
	s.cleared = append(s.cleared, id)
	return nil
}

type stubPatients struct {
	patientRepo.Repository
	patients map[string]models.Patient
}

func (s *stubPatients) GetByID(_ context.Context, id string) (*models.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, patientRepo.ErrNotFound
	}
	cp := p
	return &cp, nil
}

type recordingOutbox struct {
	mu      sync.Mutex
	queued  []string
	failErr error
}

func (o *recordingOutbox) EnqueueSync(originalID string, typ models.EventType) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failErr != nil {
		return o.failErr
	}
	o.queued = append(o.queued, key(originalID, typ))
	return nil
}

func newSyncFixture() (*DefaultSyncService, *memSchedule, *stubBilling, *stubAppointments, *recordingOutbox) {
	schedule := newMemSchedule()
	billing := &stubBilling{
		sessions: make(map[string]models.TherapySession),
		packages: make(map[string]models.TherapyPackage),
	}
	appts := &stubAppointments{appts: make(map[string]models.Appointment)}
	patients := &stubPatients{patients: make(map[string]models.Patient)}
	outbox := &recordingOutbox{}
	svc := &DefaultSyncService{
		Schedule:     schedule,
		Billing:      billing,
		Appointments: appts,
		Patients:     patients,
		Txn:          newTestCoordinator(),
		Outbox:       outbox,
		Logger:       zap.NewNop(),
	}
	return svc, schedule, billing, appts, outbox
}

func TestSyncSession_UpsertsProjectionAndClearsMarker(t *testing.T) {
	svc, schedule, billing, _, _ := newSyncFixture()
	billing.sessions["sess-1"] = models.TherapySession{
		ID:            "sess-1",
		PatientID:     "pat-1",
		DoctorID:      "doc-1",
		Specialty:     "physiotherapy",
		Date:          "2026-03-02",
		Time:          "14:00",
		SessionValue:  100,
		PaymentStatus: models.PaymentPaid,
		VisualFlag:    models.VisualOK,
		Status:        models.SessionScheduled,
		PendingSync:   true,
	}

	sess := billing.sessions["sess-1"]
	require.NoError(t, svc.SyncSession(context.Background(), &sess))

	ev, err := schedule.Get(context.Background(), "sess-1", models.EventSession)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, ev.PaymentStatus)
	assert.Equal(t, 100.0, ev.Value)
	assert.Contains(t, billing.clearedSession, "sess-1")
}

func TestSyncSession_RetriesTransientConflicts(t *testing.T) {
	svc, schedule, billing, _, outbox := newSyncFixture()
	schedule.conflictUpserts = 2
	billing.sessions["sess-1"] = models.TherapySession{ID: "sess-1", SessionValue: 80}

	sess := billing.sessions["sess-1"]
	require.NoError(t, svc.SyncSession(context.Background(), &sess))

	_, err := schedule.Get(context.Background(), "sess-1", models.EventSession)
	assert.NoError(t, err)
	assert.Empty(t, outbox.queued)
}

func TestSyncSession_ExhaustedConflictFallsBackToOutbox(t *testing.T) {
	svc, schedule, billing, _, outbox := newSyncFixture()
	schedule.conflictUpserts = 10
	billing.sessions["sess-1"] = models.TherapySession{ID: "sess-1", SessionValue: 80}

	sess := billing.sessions["sess-1"]
	err := svc.SyncSession(context.Background(), &sess)
	require.Error(t, err)
	assert.True(t, txn.IsConflictExhausted(err))
	assert.Contains(t, outbox.queued, key("sess-1", models.EventSession))
}

func TestSyncAppointment_ReprojectsLinkedSession(t *testing.T) {
	svc, schedule, billing, appts, _ := newSyncFixture()
	billing.packages["pkg-1"] = models.TherapyPackage{ID: "pkg-1", SessionValue: 90}
	billing.sessions["sess-1"] = models.TherapySession{
		ID:            "sess-1",
		PackageID:     "pkg-1",
		AppointmentID: "appt-1",
		PaymentStatus: models.PaymentPartial,
		PartialAmount: 40,
	}
	appts.appts["appt-1"] = models.Appointment{
		ID:        "appt-1",
		SessionID: "sess-1",
		PackageID: "pkg-1",
		Date:      "2026-03-02",
		Time:      "14:00",
	}

	a := appts.appts["appt-1"]
	require.NoError(t, svc.SyncAppointment(context.Background(), &a))

	// Both the appointment event and the more granular session event land.
	_, err := schedule.Get(context.Background(), "appt-1", models.EventAppointment)
	assert.NoError(t, err)
	sessEv, err := schedule.Get(context.Background(), "sess-1", models.EventSession)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartial, sessEv.PaymentStatus)
}

func TestSync_DeletedSourceRemovesProjection(t *testing.T) {
	svc, schedule, _, _, _ := newSyncFixture()
	require.NoError(t, schedule.Upsert(context.Background(), &models.ScheduleEvent{
		OriginalID: "sess-gone",
		Type:       models.EventSession,
	}))

	require.NoError(t, svc.Sync(context.Background(), "sess-gone", models.EventSession))

	_, err := schedule.Get(context.Background(), "sess-gone", models.EventSession)
	assert.Error(t, err)
}

func TestSync_ReloadsAndProjectsExisting(t *testing.T) {
	svc, schedule, billing, _, _ := newSyncFixture()
	billing.packages["pkg-1"] = models.TherapyPackage{
		ID:              "pkg-1",
		DoctorID:        "doc-1",
		TotalValue:      300,
		Status:          models.PackageActive,
		FinancialStatus: models.FinancialUnpaid,
		PendingSync:     true,
	}

	require.NoError(t, svc.Sync(context.Background(), "pkg-1", models.EventPackage))

	ev, err := schedule.Get(context.Background(), "pkg-1", models.EventPackage)
	require.NoError(t, err)
	assert.Equal(t, 300.0, ev.Value)
	assert.Equal(t, models.PaymentPending, ev.PaymentStatus)
	assert.Contains(t, billing.clearedPkg, "pkg-1")
}

func TestSync_UnknownTypeRejected(t *testing.T) {
	svc, _, _, _, _ := newSyncFixture()
	assert.Error(t, svc.Sync(context.Background(), "x", models.EventType("banana")))
}
