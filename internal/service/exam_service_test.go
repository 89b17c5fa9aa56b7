package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schedly/exam-scheduler/internal/model"
	"github.com/schedly/exam-scheduler/internal/repository/inmem"
	"github.com/schedly/exam-scheduler/internal/service"
)

var testDay = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

type examFixture struct {
	ledger    *inmem.SlotLedger
	exams     *memExamStore
	rooms     *fakeRooms
	directory *fakeDirectory
	svc       *service.ExamService

	roomID uuid.UUID
	profID uuid.UUID
	grpID  uuid.UUID
}

func newExamFixture(t *testing.T) *examFixture {
	t.Helper()

	f := &examFixture{
		ledger:    inmem.NewSlotLedger(),
		exams:     newMemExamStore(),
		directory: newFakeDirectory(),
		roomID:    uuid.New(),
		profID:    uuid.New(),
		grpID:     uuid.New(),
	}
	f.rooms = newFakeRooms(&model.Classroom{ID: f.roomID, Name: "A101", Building: "A"})
	f.ledger.AddClassroom(f.roomID)
	f.directory.professors[f.profID] = &model.Professor{ID: f.profID, FirstName: "Ada", LastName: "Popescu", Email: "ada@uni.test"}
	f.directory.groups[f.grpID] = &model.Group{ID: f.grpID, Name: "931"}

	f.svc = service.NewExamService(f.ledger, f.exams, f.rooms, f.directory, zap.NewNop())
	return f
}

func (f *examFixture) spec() service.ExamSpec {
	return service.ExamSpec{
		Subject:         "Algorithms",
		MainProfessorID: f.profID,
		Faculty:         "ac",
		GroupID:         f.grpID,
		Day:             testDay,
		Hour:            "09:00",
		DurationMin:     60,
		ClassroomID:     f.roomID,
	}
}

func TestExamCreateBooksSlot(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)
	assert.Equal(t, 540, exam.StartMin)
	assert.Equal(t, 600, exam.EndMin())
	assert.Equal(t, "09:00", exam.Hour())

	slots := f.ledger.Slots(f.roomID)
	require.Len(t, slots, 1)
	assert.Equal(t, exam.ReservationID, slots[0].ID)
	assert.Equal(t, 540, slots[0].StartMin)
	assert.Equal(t, 600, slots[0].EndMin)
}

func TestExamCreateSlotConflict(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	_, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	conflicting := f.spec()
	conflicting.Hour = "09:30"
	_, err = f.svc.Create(ctx, conflicting)
	require.ErrorIs(t, err, service.ErrSlotConflict)

	// No second exam, original interval unchanged.
	exams, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, exams, 1)
	assert.Len(t, f.ledger.Slots(f.roomID), 1)
}

func TestExamCreateUnknownMainProfessor(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	spec := f.spec()
	spec.MainProfessorID = uuid.New()
	_, err := f.svc.Create(ctx, spec)
	require.ErrorIs(t, err, service.ErrProfessorNotFound)
	assert.Empty(t, f.ledger.Slots(f.roomID))
}

func TestExamCreateUnknownClassroom(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	spec := f.spec()
	spec.ClassroomID = uuid.New()
	_, err := f.svc.Create(ctx, spec)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestExamCreateInvalidInterval(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	spec := f.spec()
	spec.Hour = "23:30"
	spec.DurationMin = 120 // spills past midnight
	_, err := f.svc.Create(ctx, spec)
	require.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestExamCreateReleasesReservationOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)
	f.exams.failCreate = true

	_, err := f.svc.Create(ctx, f.spec())
	require.Error(t, err)

	// Compensating release: no reservation left behind.
	assert.Empty(t, f.ledger.Slots(f.roomID))
}

func TestExamDeleteReleasesSlot(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, exam.ID))

	assert.Empty(t, f.ledger.Slots(f.roomID))
	_, err = f.svc.Get(ctx, exam.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	require.ErrorIs(t, f.svc.Delete(ctx, exam.ID), service.ErrNotFound)
}

func TestExamUpdateReschedules(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	hour := "11:00"
	updated, err := f.svc.Update(ctx, exam.ID, service.ExamPatch{Hour: &hour})
	require.NoError(t, err)
	assert.Equal(t, 660, updated.StartMin)
	assert.NotEqual(t, exam.ReservationID, updated.ReservationID)

	slots := f.ledger.Slots(f.roomID)
	require.Len(t, slots, 1)
	assert.Equal(t, 660, slots[0].StartMin)
	assert.Equal(t, 720, slots[0].EndMin)
}

func TestExamUpdateOverlapWithItself(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	// Shifting 30 minutes into its own old interval must work: the old
	// reservation is released before the new one is checked.
	hour := "09:30"
	updated, err := f.svc.Update(ctx, exam.ID, service.ExamPatch{Hour: &hour})
	require.NoError(t, err)
	assert.Equal(t, 570, updated.StartMin)
}

func TestExamUpdateConflictLeavesExamUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	blocker := f.spec()
	blocker.Hour = "11:00"
	_, err = f.svc.Create(ctx, blocker)
	require.NoError(t, err)

	hour := "11:00"
	_, err = f.svc.Update(ctx, exam.ID, service.ExamPatch{Hour: &hour})
	require.ErrorIs(t, err, service.ErrSlotConflict)

	// Original exam and reservation remain untouched.
	got, err := f.svc.Get(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 540, got.StartMin)
	assert.Equal(t, exam.ReservationID, got.ReservationID)

	slots := f.ledger.Slots(f.roomID)
	require.Len(t, slots, 2)
	assert.Equal(t, 540, slots[0].StartMin)
}

func TestExamUpdateReleasesNewReservationOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	f.exams.failUpdate = true
	hour := "11:00"
	_, err = f.svc.Update(ctx, exam.ID, service.ExamPatch{Hour: &hour})
	require.Error(t, err)

	// The stored exam still points at its original, live reservation; the
	// reservation taken for the failed move is gone.
	slots := f.ledger.Slots(f.roomID)
	require.Len(t, slots, 1)
	assert.Equal(t, exam.ReservationID, slots[0].ID)
	assert.Equal(t, 540, slots[0].StartMin)
}

func TestExamUpdateNonSchedulingFieldKeepsReservation(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	subject := "Operating Systems"
	updated, err := f.svc.Update(ctx, exam.ID, service.ExamPatch{Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, subject, updated.Subject)
	assert.Equal(t, exam.ReservationID, updated.ReservationID)
}

// newOrderedFixture rebuilds the service with wrappers recording mutation
// order. The exam row references its slot through a foreign key, so the row
// must always be mutated before the slot it points at is deleted.
func newOrderedFixture(t *testing.T) (*examFixture, *opRecorder) {
	t.Helper()
	f := newExamFixture(t)
	rec := &opRecorder{}
	ledger := &recordingLedger{SlotLedger: f.ledger, rec: rec}
	exams := &recordingExamStore{memExamStore: f.exams, rec: rec}
	f.svc = service.NewExamService(ledger, exams, f.rooms, f.directory, zap.NewNop())
	return f, rec
}

func TestExamDeleteRemovesRecordBeforeRelease(t *testing.T) {
	ctx := context.Background()
	f, rec := newOrderedFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)
	rec.reset()

	require.NoError(t, f.svc.Delete(ctx, exam.ID))
	assert.Equal(t, []string{"exams.delete", "ledger.release"}, rec.list())
}

func TestExamUpdateRepointsRecordBeforeReleasingOldSlot(t *testing.T) {
	ctx := context.Background()
	f, rec := newOrderedFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)
	rec.reset()

	hour := "11:00"
	_, err = f.svc.Update(ctx, exam.ID, service.ExamPatch{Hour: &hour})
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger.rebook", "exams.update", "ledger.release"}, rec.list())
}

func TestPurgeExpiredRemovesRecordBeforeRelease(t *testing.T) {
	ctx := context.Background()
	f, rec := newOrderedFixture(t)

	_, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)
	rec.reset()

	require.NoError(t, f.svc.PurgeExpired(ctx, testDay.AddDate(0, 0, 1)))
	assert.Equal(t, []string{"exams.delete", "ledger.release"}, rec.list())
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	// Day after the exam: it is expired.
	now := testDay.AddDate(0, 0, 1)
	require.NoError(t, f.svc.PurgeExpired(ctx, now))

	_, err = f.svc.Get(ctx, exam.ID)
	require.ErrorIs(t, err, service.ErrNotFound)
	assert.Empty(t, f.ledger.Slots(f.roomID))

	// Idempotent.
	require.NoError(t, f.svc.PurgeExpired(ctx, now))
}

func TestPurgeExpiredKeepsLiveExams(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	exam, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	// Mid-exam it is not yet expired.
	now := testDay.Add(time.Duration(570) * time.Minute)
	require.NoError(t, f.svc.PurgeExpired(ctx, now))

	_, err = f.svc.Get(ctx, exam.ID)
	require.NoError(t, err)
	assert.Len(t, f.ledger.Slots(f.roomID), 1)
}

func TestPurgeExpiredReclaimsOrphans(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	// An orphan: reserved but no exam ever persisted, interval elapsed.
	orphanID, err := f.ledger.Reserve(ctx, f.roomID, testDay, 540, 600)
	require.NoError(t, err)
	f.rooms.orphans = []*model.BookedSlot{{ID: orphanID, ClassroomID: f.roomID, Day: testDay, StartMin: 540, EndMin: 600}}

	require.NoError(t, f.svc.PurgeExpired(ctx, testDay.AddDate(0, 0, 1)))
	assert.Empty(t, f.ledger.Slots(f.roomID))
}

func TestNotifyUpcomingGroupsByStudent(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)

	f.directory.students[f.grpID] = []*model.Student{
		{ID: "5-3-aa", FirstName: "Ion", LastName: "Ionescu", Email: "ion@uni.test"},
		{ID: "6-3-bb", FirstName: "Maria", LastName: "Georgescu", Email: "maria@uni.test"},
		{ID: "5-3-cc", FirstName: "Radu", LastName: "Vasile"}, // no email
	}

	_, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)
	second := f.spec()
	second.Subject = "Databases"
	second.Hour = "12:00"
	_, err = f.svc.Create(ctx, second)
	require.NoError(t, err)

	digest, err := f.svc.NotifyUpcoming(ctx, testDay, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, digest, 2)
	require.Len(t, digest["ion@uni.test"], 2)
	require.Len(t, digest["maria@uni.test"], 2)

	first := digest["ion@uni.test"][0]
	assert.Equal(t, "Algorithms", first.Subject)
	assert.Equal(t, "09:00", first.Hour)
	assert.Equal(t, "A101", first.ClassroomName)
	assert.Equal(t, "Ada Popescu", first.MainProfessor)
}

func TestNotifyUpcomingWindowBounds(t *testing.T) {
	ctx := context.Background()
	f := newExamFixture(t)
	f.directory.students[f.grpID] = []*model.Student{{ID: "s", Email: "s@uni.test"}}

	_, err := f.svc.Create(ctx, f.spec())
	require.NoError(t, err)

	// Window before the exam's start excludes it.
	digest, err := f.svc.NotifyUpcoming(ctx, testDay.AddDate(0, 0, -1), testDay)
	require.NoError(t, err)
	assert.Empty(t, digest)
}
