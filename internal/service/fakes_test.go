package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schedly/exam-scheduler/internal/model"
	"github.com/schedly/exam-scheduler/internal/notify"
	"github.com/schedly/exam-scheduler/internal/service"
)

// In-memory fakes for the service collaborators. The slot ledger itself comes
// from repository/inmem.

type memExamStore struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam

	failCreate bool
	failUpdate bool
}

func newMemExamStore() *memExamStore {
	return &memExamStore{exams: make(map[uuid.UUID]*model.Exam)}
}

func (s *memExamStore) Create(ctx context.Context, exam *model.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errStoreDown
	}
	if exam.ID == uuid.Nil {
		exam.ID = uuid.New()
	}
	exam.CreatedAt = time.Now()
	copied := *exam
	s.exams[exam.ID] = &copied
	return nil
}

func (s *memExamStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exam, ok := s.exams[id]
	if !ok {
		return nil, nil
	}
	copied := *exam
	return &copied, nil
}

func (s *memExamStore) Update(ctx context.Context, exam *model.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return errStoreDown
	}
	if _, ok := s.exams[exam.ID]; !ok {
		return errStoreDown
	}
	copied := *exam
	s.exams[exam.ID] = &copied
	return nil
}

func (s *memExamStore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[id]; !ok {
		return 0, nil
	}
	delete(s.exams, id)
	return 1, nil
}

func (s *memExamStore) List(ctx context.Context) ([]*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Exam
	for _, exam := range s.exams {
		copied := *exam
		out = append(out, &copied)
	}
	// The real repository lists ORDER BY day, start_min; map iteration alone
	// would make the order random.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].StartMin < out[j].StartMin
	})
	return out, nil
}

func (s *memExamStore) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*model.Exam, error) {
	all, _ := s.List(ctx)
	var out []*model.Exam
	for _, exam := range all {
		if exam.GroupID == groupID {
			out = append(out, exam)
		}
	}
	return out, nil
}

func (s *memExamStore) ListExpired(ctx context.Context, now time.Time) ([]*model.Exam, error) {
	all, _ := s.List(ctx)
	var out []*model.Exam
	for _, exam := range all {
		if exam.EndsAt().Before(now) {
			out = append(out, exam)
		}
	}
	return out, nil
}

func (s *memExamStore) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Exam, error) {
	all, _ := s.List(ctx)
	var out []*model.Exam
	for _, exam := range all {
		start := exam.StartsAt()
		if !start.Before(from) && start.Before(to) {
			out = append(out, exam)
		}
	}
	return out, nil
}

type memRequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*model.ExamRequest
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{requests: make(map[uuid.UUID]*model.ExamRequest)}
}

func (s *memRequestStore) Create(ctx context.Context, req *model.ExamRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.CreatedAt = time.Now()
	copied := *req
	s.requests[req.ID] = &copied
	return nil
}

func (s *memRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	copied := *req
	return &copied, nil
}

func (s *memRequestStore) List(ctx context.Context, filter model.RequestFilter) ([]*model.ExamRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ExamRequest
	for _, req := range s.requests {
		if filter.StudentID != "" && req.StudentID != filter.StudentID {
			continue
		}
		if filter.GroupID != nil && req.GroupID != *filter.GroupID {
			continue
		}
		if filter.Subject != "" && req.Subject != filter.Subject {
			continue
		}
		copied := *req
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memRequestStore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return 0, nil
	}
	delete(s.requests, id)
	return 1, nil
}

type fakeRooms struct {
	rooms   map[uuid.UUID]*model.Classroom
	orphans []*model.BookedSlot
}

func newFakeRooms(rooms ...*model.Classroom) *fakeRooms {
	f := &fakeRooms{rooms: make(map[uuid.UUID]*model.Classroom)}
	for _, room := range rooms {
		f.rooms[room.ID] = room
	}
	return f
}

func (f *fakeRooms) GetByID(ctx context.Context, id uuid.UUID) (*model.Classroom, error) {
	return f.rooms[id], nil
}

func (f *fakeRooms) ListOrphanedSlots(ctx context.Context, now time.Time) ([]*model.BookedSlot, error) {
	return f.orphans, nil
}

type fakeDirectory struct {
	professors map[uuid.UUID]*model.Professor
	groups     map[uuid.UUID]*model.Group
	students   map[uuid.UUID][]*model.Student
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		professors: make(map[uuid.UUID]*model.Professor),
		groups:     make(map[uuid.UUID]*model.Group),
		students:   make(map[uuid.UUID][]*model.Student),
	}
}

func (f *fakeDirectory) GetProfessor(ctx context.Context, id uuid.UUID) (*model.Professor, error) {
	prof, ok := f.professors[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return prof, nil
}

func (f *fakeDirectory) GetGroup(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return group, nil
}

func (f *fakeDirectory) GetGroupStudents(ctx context.Context, groupID uuid.UUID) ([]*model.Student, error) {
	if _, ok := f.groups[groupID]; !ok {
		return nil, service.ErrNotFound
	}
	return f.students[groupID], nil
}

type recorderNotifier struct {
	mu       sync.Mutex
	messages []*notify.Message
}

func (r *recorderNotifier) Send(messages ...*notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, messages...)
}

func (r *recorderNotifier) sent() []*notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*notify.Message(nil), r.messages...)
}

// opRecorder captures the order of ledger and store mutations, for tests that
// pin down sequencing the database schema depends on.
type opRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *opRecorder) add(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *opRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

func (r *opRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

type recordingLedger struct {
	service.SlotLedger
	rec *opRecorder
}

func (l *recordingLedger) Reserve(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error) {
	l.rec.add("ledger.reserve")
	return l.SlotLedger.Reserve(ctx, classroomID, day, startMin, endMin)
}

func (l *recordingLedger) Release(ctx context.Context, classroomID, reservationID uuid.UUID) error {
	l.rec.add("ledger.release")
	return l.SlotLedger.Release(ctx, classroomID, reservationID)
}

func (l *recordingLedger) Rebook(ctx context.Context, oldReservationID, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error) {
	l.rec.add("ledger.rebook")
	return l.SlotLedger.Rebook(ctx, oldReservationID, classroomID, day, startMin, endMin)
}

type recordingExamStore struct {
	*memExamStore
	rec *opRecorder
}

func (s *recordingExamStore) Update(ctx context.Context, exam *model.Exam) error {
	s.rec.add("exams.update")
	return s.memExamStore.Update(ctx, exam)
}

func (s *recordingExamStore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	s.rec.add("exams.delete")
	return s.memExamStore.Delete(ctx, id)
}

var errStoreDown = errTest("store down")

type errTest string

func (e errTest) Error() string { return string(e) }
