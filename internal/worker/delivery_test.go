package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Ringer/internal/callout"
	"github.com/shaiso/Ringer/internal/domain"
	"github.com/shaiso/Ringer/internal/repo"
)

// --- Fakes ---

// fakeStore — ReminderStore в памяти с честным CAS.
type fakeStore struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*domain.Reminder
}

func newFakeStore(rems ...*domain.Reminder) *fakeStore {
	s := &fakeStore{reminders: make(map[uuid.UUID]*domain.Reminder)}
	for _, r := range rems {
		s.reminders[r.ID] = r
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) CheckPending(_ context.Context, id uuid.UUID) (*repo.PendingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &repo.PendingState{Delivered: r.Delivered, ScheduledAt: r.ScheduledAt}, nil
}

func (s *fakeStore) TryMarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	if r.Delivered {
		return false, nil
	}
	r.Delivered = true
	return true, nil
}

// fakeCaller считает звонки и может проваливать первые failFirst попыток.
type fakeCaller struct {
	mu        sync.Mutex
	calls     int
	failFirst int
}

func (c *fakeCaller) PlaceCall(_ context.Context, _ uuid.UUID, _ string) (*callout.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failFirst {
		return nil, errors.New("busy")
	}
	return &callout.Receipt{SID: "CA-test"}, nil
}

func (c *fakeCaller) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeBlob считает удаления.
type fakeBlob struct {
	mu      sync.Mutex
	data    map[uuid.UUID][]byte
	deletes int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{data: make(map[uuid.UUID][]byte)}
}

func (b *fakeBlob) Write(_ context.Context, id uuid.UUID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[id] = data
	return nil
}

func (b *fakeBlob) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[id]
	return ok, nil
}

func (b *fakeBlob) Delete(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, id)
	b.deletes++
	return nil
}

func (b *fakeBlob) deleteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deletes
}

// fakeLog собирает записанные исходы.
type fakeLog struct {
	mu       sync.Mutex
	attempts []*domain.DeliveryAttempt
}

func (l *fakeLog) Record(_ context.Context, a *domain.DeliveryAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
	return nil
}

func (l *fakeLog) outcomes() []domain.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Outcome, len(l.attempts))
	for i, a := range l.attempts {
		out[i] = a.Outcome
	}
	return out
}

func (l *fakeLog) countOutcome(o domain.Outcome) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, a := range l.attempts {
		if a.Outcome == o {
			n++
		}
	}
	return n
}

// --- Helpers ---

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func pendingReminder() *domain.Reminder {
	return &domain.Reminder{
		ID:          uuid.New(),
		ChannelID:   "+15550001122",
		Title:       "standup",
		ScheduledAt: time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC),
		CreatedAt:   time.Now().UTC(),
	}
}

func finalJob(r *domain.Reminder) *domain.Job {
	return &domain.Job{
		Kind:         domain.JobCallDeliver,
		ReminderID:   r.ID,
		Final:        true,
		ScheduledFor: r.ScheduledAt,
	}
}

// --- Deliverer Tests ---

func TestDeliver_FinalSuccess(t *testing.T) {
	rem := pendingReminder()
	store := newFakeStore(rem)
	caller := &fakeCaller{}
	blobs := newFakeBlob()
	blobs.Write(context.Background(), rem.ID, []byte("wav"))
	log := &fakeLog{}

	d := NewDeliverer(store, caller, blobs, log, fastPolicy(), nil)

	if err := d.Deliver(context.Background(), finalJob(rem)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if caller.count() != 1 {
		t.Errorf("expected 1 call, got %d", caller.count())
	}

	got, _ := store.GetByID(context.Background(), rem.ID)
	if !got.Delivered {
		t.Error("reminder should be delivered")
	}

	if blobs.deleteCount() != 1 {
		t.Errorf("artifact should be deleted once, got %d", blobs.deleteCount())
	}

	if log.countOutcome(domain.OutcomeDelivered) != 1 {
		t.Errorf("expected DELIVERED outcome, got %v", log.outcomes())
	}
}

func TestDeliver_AlreadyDeliveredSkipsCall(t *testing.T) {
	rem := pendingReminder()
	rem.Delivered = true
	store := newFakeStore(rem)
	caller := &fakeCaller{}
	log := &fakeLog{}

	d := NewDeliverer(store, caller, newFakeBlob(), log, fastPolicy(), nil)

	if err := d.Deliver(context.Background(), finalJob(rem)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if caller.count() != 0 {
		t.Errorf("no call should be placed, got %d", caller.count())
	}
	if log.countOutcome(domain.OutcomeSkippedDelivered) != 1 {
		t.Errorf("expected SKIPPED_ALREADY_DELIVERED, got %v", log.outcomes())
	}
}

func TestDeliver_StaleJobSkipped(t *testing.T) {
	rem := pendingReminder()
	store := newFakeStore(rem)
	caller := &fakeCaller{}
	log := &fakeLog{}

	d := NewDeliverer(store, caller, newFakeBlob(), log, fastPolicy(), nil)

	// Job поставлен до переноса: захваченное время не совпадает с текущим.
	job := finalJob(rem)
	job.ScheduledFor = rem.ScheduledAt.Add(-time.Hour)

	if err := d.Deliver(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if caller.count() != 0 {
		t.Errorf("stale job must not call, got %d calls", caller.count())
	}
	if log.countOutcome(domain.OutcomeSkippedStale) != 1 {
		t.Errorf("expected SKIPPED_STALE, got %v", log.outcomes())
	}

	got, _ := store.GetByID(context.Background(), rem.ID)
	if got.Delivered {
		t.Error("stale job must not mark delivered")
	}
}

func TestDeliver_ManualJobWithoutCapturedTimeIsNotStale(t *testing.T) {
	rem := pendingReminder()
	store := newFakeStore(rem)
	caller := &fakeCaller{}
	log := &fakeLog{}

	d := NewDeliverer(store, caller, newFakeBlob(), log, fastPolicy(), nil)

	// Ручная доставка ставит job без захваченного времени —
	// проверка устаревания отключена, звонок валиден всегда.
	job := finalJob(rem)
	job.ScheduledFor = time.Time{}

	if err := d.Deliver(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if log.countOutcome(domain.OutcomeDelivered) != 1 {
		t.Errorf("expected DELIVERED, got %v", log.outcomes())
	}
}

func TestDeliver_RescheduledInLookaheadWindowSkips(t *testing.T) {
	rem := pendingReminder()
	store := newFakeStore(rem)
	caller := &fakeCaller{}
	log := &fakeLog{}

	d := NewDeliverer(store, caller, newFakeBlob(), log, fastPolicy(), nil)

	// Job захватил время при постановке (так делает и sweep),
	// после чего напоминание перенесли на неделю вперёд.
	job := finalJob(rem)

	store.mu.Lock()
	store.reminders[rem.ID].ScheduledAt = rem.ScheduledAt.Add(7 * 24 * time.Hour)
	store.mu.Unlock()

	if err := d.Deliver(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if caller.count() != 0 {
		t.Errorf("rescheduled reminder must not be called early, got %d calls", caller.count())
	}
	if log.countOutcome(domain.OutcomeSkippedStale) != 1 {
		t.Errorf("expected SKIPPED_STALE, got %v", log.outcomes())
	}
	got, _ := store.GetByID(context.Background(), rem.ID)
	if got.Delivered {
		t.Error("rescheduled reminder must stay pending")
	}
}

func TestDeliver_RetryThenSuccess(t *testing.T) {
	rem := pendingReminder()
	store := newFakeStore(rem)
	caller := &fakeCaller{failFirst: 2}
	log := &fakeLog{}

	d := NewDeliverer(store, caller, newFakeBlob(), log, fastPolicy(), nil)

	if err := d.Deliver(context.Background(), finalJob(rem)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if caller.count() != 3 {
		t.Errorf("expected 3 attempts, got %d", caller.count())
	}
	if log.countOutcome(domain.OutcomeDelivered) != 1 {
		t.Errorf("expected DELIVERED after retries, got %v", log.outcomes())
	}
}

func TestDeliver_RetryExhaustedKeepsPending(t *testing.T) {
	rem := pendingReminder()
	store := newFakeStore(rem)
	caller := &fakeCaller{failFirst: 10}
	log := &fakeLog{}

	d := NewDeliverer(store, caller, newFakeBlob(), log, fastPolicy(), nil)

	err := d.Deliver(context.Background(), finalJob(rem))
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("expected ErrRetryExhausted, got %v", err)
	}

	if caller.count() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", caller.count())
	}

	got, _ := store.GetByID(context.Background(), rem.ID)
	if got.Delivered {
		t.Error("reminder must stay pending after failed delivery")
	}
	if log.countOutcome(domain.OutcomeFailed) != 1 {
		t.Errorf("expected FAILED outcome, got %v", log.outcomes())
	}
}

func TestDeliver_LeadCallDoesNotTouchState(t *testing.T) {
	rem := pendingReminder()
	rem.LeadTime = 15 * time.Minute
	store := newFakeStore(rem)
	caller := &fakeCaller{}
	blobs := newFakeBlob()
	blobs.Write(context.Background(), rem.ID, []byte("wav"))
	log := &fakeLog{}

	d := NewDeliverer(store, caller, blobs, log, fastPolicy(), nil)

	job := finalJob(rem)
	job.Final = false

	if err := d.Deliver(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), rem.ID)
	if got.Delivered {
		t.Error("lead call must not mark delivered")
	}
	if blobs.deleteCount() != 0 {
		t.Error("lead call must not delete the artifact")
	}
	if log.countOutcome(domain.OutcomeCalled) != 1 {
		t.Errorf("expected CALLED outcome, got %v", log.outcomes())
	}
}

func TestDeliver_MissingReminderDropsJob(t *testing.T) {
	store := newFakeStore()
	caller := &fakeCaller{}

	d := NewDeliverer(store, caller, newFakeBlob(), &fakeLog{}, fastPolicy(), nil)

	job := &domain.Job{Kind: domain.JobCallDeliver, ReminderID: uuid.New(), Final: true}
	if err := d.Deliver(context.Background(), job); err != nil {
		t.Fatalf("missing reminder should not be an error: %v", err)
	}
	if caller.count() != 0 {
		t.Error("no call for missing reminder")
	}
}

func TestDeliver_ConcurrentFinalJobsDeliverExactlyOnce(t *testing.T) {
	rem := pendingReminder()
	store := newFakeStore(rem)
	blobs := newFakeBlob()
	blobs.Write(context.Background(), rem.ID, []byte("wav"))
	log := &fakeLog{}

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := NewDeliverer(store, &fakeCaller{}, blobs, log, fastPolicy(), nil)
			if err := d.Deliver(context.Background(), finalJob(rem)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := log.countOutcome(domain.OutcomeDelivered); got != 1 {
		t.Errorf("expected exactly 1 DELIVERED, got %d (outcomes: %v)", got, log.outcomes())
	}
	if blobs.deleteCount() != 1 {
		t.Errorf("artifact must be deleted exactly once, got %d", blobs.deleteCount())
	}

	skips := log.countOutcome(domain.OutcomeSkippedDelivered) + log.countOutcome(domain.OutcomeSkippedRaceLost)
	if skips != n-1 {
		t.Errorf("expected %d skips, got %d (outcomes: %v)", n-1, skips, log.outcomes())
	}
}

// --- Worker routing ---

func TestWorkerRun_UnknownKind(t *testing.T) {
	w := New(Config{
		Deliverer: NewDeliverer(newFakeStore(), &fakeCaller{}, newFakeBlob(), &fakeLog{}, fastPolicy(), nil),
		Speech:    NewSpeechWorker(newFakeStore(), nil, nil, &fakeLog{}, fastPolicy(), nil, nil),
	})

	err := w.Run(context.Background(), &domain.Job{Kind: "bogus"})
	if !errors.Is(err, ErrUnknownJobKind) {
		t.Errorf("expected ErrUnknownJobKind, got %v", err)
	}
}

func TestWorkerRun_RoutesByKind(t *testing.T) {
	rem := pendingReminder()
	store := newFakeStore(rem)
	caller := &fakeCaller{}
	log := &fakeLog{}

	w := New(Config{
		Deliverer: NewDeliverer(store, caller, newFakeBlob(), log, fastPolicy(), nil),
		Speech:    NewSpeechWorker(store, nil, nil, log, fastPolicy(), nil, nil),
	})

	if err := w.Run(context.Background(), finalJob(rem)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.count() != 1 {
		t.Errorf("call job should reach deliverer, got %d calls", caller.count())
	}

	speechJob := &domain.Job{Kind: domain.JobSpeechGenerate, ReminderID: rem.ID}
	if err := w.Run(context.Background(), speechJob); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
