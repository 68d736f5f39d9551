package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Ringer/internal/domain"
)

// fakePublisher запоминает публикации и умеет имитировать отказ брокера.
type fakePublisher struct {
	mu        sync.Mutex
	immediate []*domain.Job
	deferred  []deferredPublish
	fail      bool
}

type deferredPublish struct {
	job   *domain.Job
	delay time.Duration
}

func (p *fakePublisher) PublishJob(_ context.Context, job *domain.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.immediate = append(p.immediate, job)
	return nil
}

func (p *fakePublisher) PublishJobDeferred(_ context.Context, job *domain.Job, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.deferred = append(p.deferred, deferredPublish{job: job, delay: delay})
	return nil
}

// fakeRunner запоминает выполненные jobs.
type fakeRunner struct {
	mu   sync.Mutex
	runs []*domain.Job
	err  error
}

func (r *fakeRunner) Run(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, job)
	return r.err
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
}

func TestSchedule_PastGoesToReadyQueue(t *testing.T) {
	pub := &fakePublisher{}
	d := New(Config{Publisher: pub, Runner: &fakeRunner{}, Now: fixedNow})

	job := &domain.Job{Kind: domain.JobSpeechGenerate, ReminderID: uuid.New()}
	if err := d.Schedule(context.Background(), job, time.Time{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.immediate) != 1 {
		t.Fatalf("expected 1 immediate publish, got %d", len(pub.immediate))
	}
	if len(pub.deferred) != 0 {
		t.Errorf("expected no deferred publishes, got %d", len(pub.deferred))
	}
}

func TestSchedule_FutureGoesToDeferredQueue(t *testing.T) {
	pub := &fakePublisher{}
	d := New(Config{Publisher: pub, Runner: &fakeRunner{}, Now: fixedNow})

	job := &domain.Job{Kind: domain.JobCallDeliver, ReminderID: uuid.New(), Final: true}
	at := fixedNow().Add(30 * time.Minute)
	if err := d.Schedule(context.Background(), job, at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.deferred) != 1 {
		t.Fatalf("expected 1 deferred publish, got %d", len(pub.deferred))
	}
	if pub.deferred[0].delay != 30*time.Minute {
		t.Errorf("expected 30m delay, got %v", pub.deferred[0].delay)
	}
}

func TestSchedule_PublishFailureFallsBackToRunner(t *testing.T) {
	pub := &fakePublisher{fail: true}
	runner := &fakeRunner{}
	d := New(Config{Publisher: pub, Runner: runner, Now: fixedNow})

	job := &domain.Job{Kind: domain.JobSpeechGenerate, ReminderID: uuid.New()}
	if err := d.Schedule(context.Background(), job, time.Time{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if runner.count() != 1 {
		t.Fatalf("expected sync fallback run, got %d runs", runner.count())
	}
}

func TestSchedule_NoBrokerRunsDueJobSynchronously(t *testing.T) {
	runner := &fakeRunner{}
	d := New(Config{Runner: runner, Now: fixedNow})

	job := &domain.Job{Kind: domain.JobCallDeliver, ReminderID: uuid.New(), Final: true}
	if err := d.Schedule(context.Background(), job, fixedNow().Add(-time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if runner.count() != 1 {
		t.Fatalf("expected 1 sync run, got %d", runner.count())
	}
}

func TestSchedule_NoBrokerRunnerErrorPropagates(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	d := New(Config{Runner: runner, Now: fixedNow})

	job := &domain.Job{Kind: domain.JobSpeechGenerate, ReminderID: uuid.New()}
	if err := d.Schedule(context.Background(), job, time.Time{}); err == nil {
		t.Fatal("expected runner error")
	}
}

func TestSchedule_NoBrokerFutureJobUsesTimer(t *testing.T) {
	runner := &fakeRunner{}
	d := New(Config{Runner: runner, Now: time.Now})

	job := &domain.Job{Kind: domain.JobCallDeliver, ReminderID: uuid.New(), Final: true}
	if err := d.Schedule(context.Background(), job, time.Now().Add(20*time.Millisecond)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Таймер ещё не сработал
	if runner.count() != 0 {
		t.Fatal("job should not run before its timer fires")
	}

	deadline := time.Now().Add(2 * time.Second)
	for runner.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runner.count() != 1 {
		t.Fatalf("expected timer to run the job, got %d runs", runner.count())
	}
}

func TestScheduleReminder_EmitsSpeechAndFinalCall(t *testing.T) {
	pub := &fakePublisher{}
	d := New(Config{Publisher: pub, Runner: &fakeRunner{}, Now: fixedNow})

	r := &domain.Reminder{
		ID:          uuid.New(),
		ChannelID:   "+15550001122",
		Title:       "standup",
		ScheduledAt: fixedNow().Add(time.Hour),
	}
	if err := d.ScheduleReminder(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Речь — немедленно
	if len(pub.immediate) != 1 {
		t.Fatalf("expected 1 immediate publish, got %d", len(pub.immediate))
	}
	if pub.immediate[0].Kind != domain.JobSpeechGenerate {
		t.Errorf("expected speech job, got %s", pub.immediate[0].Kind)
	}

	// Финальный звонок — отложенно, ровно один
	if len(pub.deferred) != 1 {
		t.Fatalf("expected 1 deferred publish, got %d", len(pub.deferred))
	}
	final := pub.deferred[0]
	if final.job.Kind != domain.JobCallDeliver || !final.job.Final {
		t.Errorf("expected final call job, got %+v", final.job)
	}
	if !final.job.ScheduledFor.Equal(r.ScheduledAt) {
		t.Errorf("job should capture ScheduledAt, got %v", final.job.ScheduledFor)
	}
	if final.delay != time.Hour {
		t.Errorf("expected 1h delay, got %v", final.delay)
	}
}

func TestScheduleReminder_LeadTimeAddsExtraCall(t *testing.T) {
	pub := &fakePublisher{}
	d := New(Config{Publisher: pub, Runner: &fakeRunner{}, Now: fixedNow})

	r := &domain.Reminder{
		ID:          uuid.New(),
		ChannelID:   "+15550001122",
		Title:       "standup",
		ScheduledAt: fixedNow().Add(time.Hour),
		LeadTime:    15 * time.Minute,
	}
	if err := d.ScheduleReminder(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.deferred) != 2 {
		t.Fatalf("expected lead and final calls, got %d deferred", len(pub.deferred))
	}

	lead, final := pub.deferred[0], pub.deferred[1]
	if lead.job.Final {
		t.Error("lead call must not be final")
	}
	if lead.delay != 45*time.Minute {
		t.Errorf("expected lead delay 45m, got %v", lead.delay)
	}
	if !final.job.Final {
		t.Error("second call must be final")
	}
}

func TestScheduleReminder_PastLeadFiresImmediately(t *testing.T) {
	pub := &fakePublisher{}
	d := New(Config{Publisher: pub, Runner: &fakeRunner{}, Now: fixedNow})

	// Напоминание через 5 минут с lead 30 минут: момент lead уже прошёл.
	r := &domain.Reminder{
		ID:          uuid.New(),
		ChannelID:   "+15550001122",
		Title:       "standup",
		ScheduledAt: fixedNow().Add(5 * time.Minute),
		LeadTime:    30 * time.Minute,
	}
	if err := d.ScheduleReminder(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// speech + lead уходят немедленно
	if len(pub.immediate) != 2 {
		t.Fatalf("expected speech and lead immediately, got %d", len(pub.immediate))
	}
	if len(pub.deferred) != 1 {
		t.Fatalf("expected only final deferred, got %d", len(pub.deferred))
	}
}
