package billing

import (
	"context"
	"sort"
	"sync"

	appointmentRepo "clinicore/database/repository/appointment"
	billingRepo "clinicore/database/repository/billing"
	patientRepo "clinicore/database/repository/patient"
	"clinicore/database/txn"
	"clinicore/models"
	"clinicore/utils"

	"go.uber.org/zap"
)

// passRunner executes the unit of work directly; the coordinator's retry
// semantics are exercised separately in the txn package tests.
type passRunner struct{}

func (passRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testCoordinator() *txn.Coordinator {
	return &txn.Coordinator{
		Runner:      passRunner{},
		MaxAttempts: 3,
		BaseDelay:   1,
		Logger:      zap.NewNop(),
	}
}

// fakeBillingRepo is an in-memory billingRepo.Repository.
type fakeBillingRepo struct {
	mu       sync.Mutex
	packages map[string]models.TherapyPackage
	sessions map[string]models.TherapySession
	payments map[string]models.Payment
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		packages: make(map[string]models.TherapyPackage),
		sessions: make(map[string]models.TherapySession),
		payments: make(map[string]models.Payment),
	}
}

func (r *fakeBillingRepo) GetPackageByID(_ context.Context, id string) (*models.TherapyPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pkg, ok := r.packages[id]
	if !ok {
		return nil, billingRepo.ErrNotFound
	}
	cp := pkg
	return &cp, nil
}

func (r *fakeBillingRepo) InsertPackage(_ context.Context, pkg *models.TherapyPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[pkg.ID] = *pkg
	return nil
}

func (r *fakeBillingRepo) UpdatePackage(_ context.Context, pkg *models.TherapyPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.packages[pkg.ID]; !ok {
		return billingRepo.ErrNotFound
	}
	r.packages[pkg.ID] = *pkg
	return nil
}

func (r *fakeBillingRepo) DeletePackage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.packages, id)
	return nil
}

func (r *fakeBillingRepo) ListPendingSyncPackages(_ context.Context, limit int) ([]models.TherapyPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TherapyPackage
	for _, pkg := range r.packages {
		if pkg.PendingSync && len(out) < limit {
			out = append(out, pkg)
		}
	}
	return out, nil
}

func (r *fakeBillingRepo) ClearPackagePendingSync(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pkg, ok := r.packages[id]; ok {
		pkg.PendingSync = false
		r.packages[id] = pkg
	}
	return nil
}

func (r *fakeBillingRepo) GetSessionByID(_ context.Context, id string) (*models.TherapySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, billingRepo.ErrNotFound
	}
	cp := s
	return &cp, nil
}

func (r *fakeBillingRepo) InsertSession(_ context.Context, s *models.TherapySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeBillingRepo) UpdateSession(_ context.Context, s *models.TherapySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return billingRepo.ErrNotFound
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeBillingRepo) DeleteSessionsByPackage(_ context.Context, packageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.PackageID == packageID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *fakeBillingRepo) ListPackageSessions(_ context.Context, packageID string) ([]models.TherapySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TherapySession
	for _, s := range r.sessions {
		if s.PackageID == packageID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (r *fakeBillingRepo) SumPartialAmounts(_ context.Context, packageID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total float64
	for _, s := range r.sessions {
		if s.PackageID == packageID && s.Status != models.SessionCanceled {
			total = utils.AddMoney(total, s.PartialAmount)
		}
	}
	return total, nil
}

func (r *fakeBillingRepo) ListPendingSyncSessions(_ context.Context, limit int) ([]models.TherapySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TherapySession
	for _, s := range r.sessions {
		if s.PendingSync && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeBillingRepo) ClearSessionPendingSync(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.PendingSync = false
		r.sessions[id] = s
	}
	return nil
}

func (r *fakeBillingRepo) GetPaymentByID(_ context.Context, id string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, billingRepo.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (r *fakeBillingRepo) InsertPayment(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.ID] = *p
	return nil
}

func (r *fakeBillingRepo) ListPackagePayments(_ context.Context, packageID string) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.PackageID == packageID {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ billingRepo.Repository = (*fakeBillingRepo)(nil)

// fakeAppointmentRepo is an in-memory appointmentRepo.Repository.
type fakeAppointmentRepo struct {
	mu    sync.Mutex
	appts map[string]models.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appts: make(map[string]models.Appointment)}
}

func (r *fakeAppointmentRepo) GetByID(_ context.Context, id string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, appointmentRepo.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (r *fakeAppointmentRepo) Insert(_ context.Context, a *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appts[a.ID] = *a
	return nil
}

func (r *fakeAppointmentRepo) Update(_ context.Context, a *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[a.ID]; !ok {
		return appointmentRepo.ErrNotFound
	}
	r.appts[a.ID] = *a
	return nil
}

func (r *fakeAppointmentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.appts, id)
	return nil
}

func (r *fakeAppointmentRepo) DeleteByPackage(_ context.Context, packageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.appts {
		if a.PackageID == packageID {
			delete(r.appts, id)
		}
	}
	return nil
}

func (r *fakeAppointmentRepo) SlotTaken(_ context.Context, patientID, doctorID, date, timeOfDay, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appts {
		if a.ID == excludeID {
			continue
		}
		if a.PatientID == patientID && a.DoctorID == doctorID && a.Date == date && a.Time == timeOfDay &&
			a.OperationalStatus != models.OperationalCanceled {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAppointmentRepo) ListPendingSync(_ context.Context, limit int) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Appointment
	for _, a := range r.appts {
		if a.PendingSync && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ClearPendingSync(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.appts[id]; ok {
		a.PendingSync = false
		r.appts[id] = a
	}
	return nil
}

var _ appointmentRepo.Repository = (*fakeAppointmentRepo)(nil)

// fakePatientRepo is an in-memory patientRepo.Repository.
type fakePatientRepo struct {
	mu       sync.Mutex
	patients map[string]models.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[string]models.Patient)}
}

func (r *fakePatientRepo) GetByID(_ context.Context, id string) (*models.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, patientRepo.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (r *fakePatientRepo) Insert(_ context.Context, p *models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = *p
	return nil
}

func (r *fakePatientRepo) Update(_ context.Context, p *models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = *p
	return nil
}

func (r *fakePatientRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.patients, id)
	return nil
}

func (r *fakePatientRepo) List(_ context.Context) ([]models.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Patient
	for _, p := range r.patients {
		out = append(out, p)
	}
	return out, nil
}

var _ patientRepo.Repository = (*fakePatientRepo)(nil)

// recordingSync records which entities were projected after commits.
type recordingSync struct {
	mu       sync.Mutex
	packages []string
	sessions []string
	appts    []string
	deleted  []string
}

func (r *recordingSync) SyncPackage(_ context.Context, pkg *models.TherapyPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages = append(r.packages, pkg.ID)
	return nil
}

func (r *recordingSync) SyncSession(_ context.Context, s *models.TherapySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s.ID)
	return nil
}

func (r *recordingSync) SyncAppointment(_ context.Context, a *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appts = append(r.appts, a.ID)
	return nil
}

func (r *recordingSync) DeleteEvent(_ context.Context, originalID string, typ models.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, string(typ)+":"+originalID)
	return nil
}

var _ EventSync = (*recordingSync)(nil)

// newTestService wires a billing service against the in-memory fakes.
func newTestService() (*DefaultBillingService, *fakeBillingRepo, *fakeAppointmentRepo, *fakePatientRepo, *recordingSync) {
	repo := newFakeBillingRepo()
	appts := newFakeAppointmentRepo()
	patients := newFakePatientRepo()
	sync := &recordingSync{}
	svc := &DefaultBillingService{
		Repo:         repo,
		Appointments: appts,
		Patients:     patients,
		Txn:          testCoordinator(),
		Events:       sync,
		Logger:       zap.NewNop(),
	}
	return svc, repo, appts, patients, sync
}
