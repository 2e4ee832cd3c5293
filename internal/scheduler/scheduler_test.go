package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"meetbot/internal/attendance"
	"meetbot/internal/notify"
	"meetbot/internal/timetable"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeRunner struct {
	clock *fakeClock
	// took is how far the clock moves during each run.
	took time.Duration
	err  error
	runs []timetable.Entry
}

func (r *fakeRunner) Run(ctx context.Context, e timetable.Entry) (attendance.Result, error) {
	r.runs = append(r.runs, e)
	start := r.clock.now()
	if r.took > 0 {
		r.clock.set(start.Add(r.took))
	}
	res := attendance.Result{
		Entry:      e,
		State:      attendance.StateLeft,
		Emitted:    []attendance.Emission{{Outcome: notify.OutcomeJoined}, {Outcome: notify.OutcomeLeft}},
		Wait:       e.Duration(),
		StartedAt:  start,
		FinishedAt: r.clock.now(),
	}
	if r.err != nil {
		res.State = attendance.StateFailed
		res.Emitted = nil
	}
	return res, r.err
}

func mustEntry(t *testing.T, team, meeting, start, end, day string) timetable.Entry {
	t.Helper()
	e, err := timetable.NewEntry(team, meeting, start, end, day)
	if err != nil {
		t.Fatalf("NewEntry failed: %v", err)
	}
	return e
}

// 2026-03-02 is a Monday.
func monday(hh, mm, ss int) time.Time {
	return time.Date(2026, 3, 2, hh, mm, ss, 0, time.UTC)
}

func newTestScheduler(t *testing.T, entries []timetable.Entry, runner *fakeRunner, clock *fakeClock, runLog string) *Scheduler {
	t.Helper()
	s, err := New(entries, runner, Options{Location: time.UTC, Now: clock.now, RunLog: runLog})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestWeeklyExpr(t *testing.T) {
	cases := []struct {
		day, start, want string
	}{
		{"monday", "10:00", "0 10 * * 1"},
		{"sunday", "07:05", "5 7 * * 0"},
		{"saturday", "23:59", "59 23 * * 6"},
	}
	for _, tc := range cases {
		e := mustEntry(t, "T", "M", tc.start, "23:59", tc.day)
		if got := WeeklyExpr(e); got != tc.want {
			t.Fatalf("WeeklyExpr(%s %s)=%q, want %q", tc.day, tc.start, got, tc.want)
		}
	}
}

func TestNewTrigger_NextIsWeekly(t *testing.T) {
	e := mustEntry(t, "T", "Maths", "10:00", "10:50", "monday")
	tr, err := NewTrigger(e, monday(9, 0, 0), time.UTC)
	if err != nil {
		t.Fatalf("NewTrigger failed: %v", err)
	}
	if !tr.Next.Equal(monday(10, 0, 0)) {
		t.Fatalf("Next=%s, want %s", tr.Next, monday(10, 0, 0))
	}
	tr.advance(monday(10, 0, 3))
	if want := monday(10, 0, 0).AddDate(0, 0, 7); !tr.Next.Equal(want) {
		t.Fatalf("Next after fire=%s, want %s", tr.Next, want)
	}
}

func TestTriggerKey_SharedByDuplicateRows(t *testing.T) {
	a, err := NewTrigger(mustEntry(t, "Team Rockers", "Maths", "10:00", "10:50", "monday"), monday(9, 0, 0), time.UTC)
	if err != nil {
		t.Fatalf("NewTrigger failed: %v", err)
	}
	b, err := NewTrigger(mustEntry(t, "team ROCKERS", "MATHS", "10:00", "11:00", "monday"), monday(9, 0, 0), time.UTC)
	if err != nil {
		t.Fatalf("NewTrigger failed: %v", err)
	}
	if a.Key() != b.Key() {
		t.Fatalf("Key()=%q and %q, want equal", a.Key(), b.Key())
	}

	// The occurrence is named in the trigger's own zone.
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	at := monday(10, 0, 0).In(plus2)
	want := a.Key() + "@2026-03-02 10:00"
	if got := a.OccurrenceKey(at); got != want {
		t.Fatalf("OccurrenceKey()=%q, want %q", got, want)
	}
	if got := OccurrenceKey(a.Entry, monday(10, 0, 0)); got != want {
		t.Fatalf("OccurrenceKey(entry)=%q, want %q", got, want)
	}
}

func TestTick_FiresDueTriggerOnceAndReschedules(t *testing.T) {
	clock := &fakeClock{t: monday(9, 59, 0)}
	runner := &fakeRunner{clock: clock, took: 50 * time.Minute}
	e := mustEntry(t, "Team Rockers", "Maths", "10:00", "10:50", "monday")
	runLog := filepath.Join(t.TempDir(), "runs", "runs.jsonl")
	s := newTestScheduler(t, []timetable.Entry{e}, runner, clock, runLog)

	if n, err := s.Tick(context.Background(), clock.now()); err != nil || n != 0 {
		t.Fatalf("early Tick fired=%d err=%v", n, err)
	}

	clock.set(monday(10, 0, 4))
	n, err := s.Tick(context.Background(), clock.now())
	if err != nil || n != 1 {
		t.Fatalf("Tick fired=%d err=%v, want 1 run", n, err)
	}
	if len(runner.runs) != 1 {
		t.Fatalf("runs=%d, want 1", len(runner.runs))
	}

	n, _ = s.Tick(context.Background(), clock.now())
	if n != 0 {
		t.Fatalf("trigger fired again in the same week")
	}
	next := s.Triggers()[0].Next
	if want := monday(10, 0, 0).AddDate(0, 0, 7); !next.Equal(want) {
		t.Fatalf("Next=%s, want %s", next, want)
	}

	recs, err := ReadRunRecords(runLog)
	if err != nil {
		t.Fatalf("ReadRunRecords failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records=%d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Status != StatusRan || rec.State != "left" || rec.ID == "" {
		t.Fatalf("record=%+v", rec)
	}
	if rec.Occurrence != "monday/10:00/team rockers/maths@2026-03-02 10:00" {
		t.Fatalf("occurrence=%q", rec.Occurrence)
	}
	if strings.Join(rec.Outcomes, ",") != "joined,left" || rec.WaitSeconds != 3000 {
		t.Fatalf("record outcomes=%v wait=%v", rec.Outcomes, rec.WaitSeconds)
	}
}

func TestTick_BlockedTriggerIsMissedNotRunLate(t *testing.T) {
	clock := &fakeClock{t: monday(9, 0, 0)}
	runner := &fakeRunner{clock: clock, took: 50 * time.Minute}
	first := mustEntry(t, "T", "Maths", "10:00", "10:50", "monday")
	overlap := mustEntry(t, "T", "Physics", "10:30", "11:00", "monday")
	runLog := filepath.Join(t.TempDir(), "runs.jsonl")
	s := newTestScheduler(t, []timetable.Entry{first, overlap}, runner, clock, runLog)

	clock.set(monday(10, 0, 1))
	if _, err := s.Tick(context.Background(), clock.now()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	// The maths run blocked until 10:50; physics was due at 10:30.
	if _, err := s.Tick(context.Background(), clock.now()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(runner.runs) != 1 || runner.runs[0].Meeting != "Maths" {
		t.Fatalf("runs=%v, want only Maths", runner.runs)
	}
	for _, tr := range s.Triggers() {
		if !tr.Next.After(clock.now()) {
			t.Fatalf("trigger %s not rescheduled: %s", tr.Entry.Meeting, tr.Next)
		}
	}

	recs, _ := ReadRunRecords(runLog)
	var statuses []string
	for _, r := range recs {
		statuses = append(statuses, r.Meeting+":"+r.Status)
	}
	if strings.Join(statuses, ",") != "Maths:ran,Physics:missed" {
		t.Fatalf("statuses=%v", statuses)
	}
}

func TestTick_WithinGraceStillRuns(t *testing.T) {
	clock := &fakeClock{t: monday(9, 0, 0)}
	runner := &fakeRunner{clock: clock}
	s := newTestScheduler(t, []timetable.Entry{mustEntry(t, "T", "Maths", "10:00", "10:50", "monday")}, runner, clock, "")

	clock.set(monday(10, 1, 30))
	if n, _ := s.Tick(context.Background(), clock.now()); n != 1 {
		t.Fatalf("fired=%d, want 1 within grace", n)
	}
}

func TestTick_ClaimedOccurrenceIsSkipped(t *testing.T) {
	clock := &fakeClock{t: monday(9, 0, 0)}
	runner := &fakeRunner{clock: clock}
	e := mustEntry(t, "T", "Maths", "10:00", "10:50", "monday")
	ledger := NewMemoryLedger(0)
	if ok, _ := ledger.Claim(context.Background(), OccurrenceKey(e, monday(10, 0, 0))); !ok {
		t.Fatalf("initial claim failed")
	}
	s, err := New([]timetable.Entry{e}, runner, Options{Location: time.UTC, Now: clock.now, Ledger: ledger})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	clock.set(monday(10, 0, 2))
	if n, _ := s.Tick(context.Background(), clock.now()); n != 0 || len(runner.runs) != 0 {
		t.Fatalf("claimed occurrence ran")
	}
}

func TestTick_DuplicateRowsRunOnce(t *testing.T) {
	clock := &fakeClock{t: monday(9, 0, 0)}
	runner := &fakeRunner{clock: clock}
	e := mustEntry(t, "T", "Maths", "10:00", "10:50", "monday")
	s := newTestScheduler(t, []timetable.Entry{e, e}, runner, clock, "")

	if got := len(s.Triggers()); got != 2 {
		t.Fatalf("triggers=%d, want 2", got)
	}
	clock.set(monday(10, 0, 2))
	s.Tick(context.Background(), clock.now())
	if len(runner.runs) != 1 {
		t.Fatalf("runs=%d, want 1", len(runner.runs))
	}
}

func TestTick_FatalErrorStops(t *testing.T) {
	clock := &fakeClock{t: monday(9, 0, 0)}
	fatal := errors.Join(attendance.ErrFatal, errors.New("auth"))
	runner := &fakeRunner{clock: clock, err: fatal}
	s := newTestScheduler(t, []timetable.Entry{
		mustEntry(t, "T", "Maths", "10:00", "10:50", "monday"),
		mustEntry(t, "T", "Physics", "10:00", "10:50", "monday"),
	}, runner, clock, "")

	clock.set(monday(10, 0, 2))
	n, err := s.Tick(context.Background(), clock.now())
	if !errors.Is(err, attendance.ErrFatal) {
		t.Fatalf("err=%v, want ErrFatal", err)
	}
	if n != 1 || len(runner.runs) != 1 {
		t.Fatalf("fired=%d runs=%d, want 1", n, len(runner.runs))
	}
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	clock := &fakeClock{t: monday(9, 0, 0)}
	runner := &fakeRunner{clock: clock}
	s := newTestScheduler(t, nil, runner, clock, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestRun_ReturnsFatalError(t *testing.T) {
	clock := &fakeClock{t: monday(10, 0, 1)}
	runner := &fakeRunner{clock: clock, err: attendance.ErrFatal}
	e := mustEntry(t, "T", "Maths", "10:00", "10:50", "monday")
	s := newTestScheduler(t, []timetable.Entry{e}, runner, clock, "")
	// Registered at 10:00:01, so the first fire is next week.
	clock.set(monday(10, 0, 1).AddDate(0, 0, 7))

	if err := s.Run(context.Background()); !errors.Is(err, attendance.ErrFatal) {
		t.Fatalf("Run err=%v, want ErrFatal", err)
	}
}

func TestTriggers_SortedByNext(t *testing.T) {
	clock := &fakeClock{t: monday(12, 0, 0)}
	s := newTestScheduler(t, []timetable.Entry{
		mustEntry(t, "T", "Late", "11:00", "12:00", "monday"),
		mustEntry(t, "T", "Tue", "09:00", "10:00", "tuesday"),
		mustEntry(t, "T", "Soon", "13:00", "14:00", "monday"),
	}, &fakeRunner{clock: clock}, clock, "")

	var got []string
	for _, tr := range s.Triggers() {
		got = append(got, tr.Entry.Meeting)
	}
	if strings.Join(got, ",") != "Soon,Tue,Late" {
		t.Fatalf("order=%v", got)
	}
}

func TestMemoryLedger_ClaimOnceUntilExpiry(t *testing.T) {
	l := NewMemoryLedger(time.Hour)
	base := monday(10, 0, 0)
	l.now = func() time.Time { return base }

	if ok, _ := l.Claim(context.Background(), "k"); !ok {
		t.Fatalf("first claim failed")
	}
	if ok, _ := l.Claim(context.Background(), "k"); ok {
		t.Fatalf("second claim succeeded")
	}
	l.now = func() time.Time { return base.Add(2 * time.Hour) }
	if ok, _ := l.Claim(context.Background(), "k"); !ok {
		t.Fatalf("claim after expiry failed")
	}
}

func TestRedisLedger_KeyAndErrors(t *testing.T) {
	if _, err := NewRedisLedger("", "", 0); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewRedisLedger("not-a-url", "", 0); err == nil {
		t.Fatalf("expected error for bad url")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	l := newRedisLedger(client, "", 0)
	defer l.Close()
	if got := l.key(" occ "); got != "meetbot:occurrence:occ" {
		t.Fatalf("key=%q", got)
	}
	if l.ttl != DefaultClaimTTL {
		t.Fatalf("ttl=%s, want %s", l.ttl, DefaultClaimTTL)
	}
	if _, err := l.Claim(context.Background(), "occ"); err == nil {
		t.Fatalf("expected error from unreachable redis")
	}
}

func TestAppendRunRecord_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.jsonl")
	for i := 0; i < 3; i++ {
		if err := AppendRunRecord(path, RunRecord{ID: newRunID(), Status: StatusRan}); err != nil {
			t.Fatalf("AppendRunRecord failed: %v", err)
		}
	}
	recs, err := ReadRunRecords(path)
	if err != nil {
		t.Fatalf("ReadRunRecords failed: %v", err)
	}
	if len(recs) != 3 || recs[0].ID == recs[1].ID {
		t.Fatalf("records=%+v", recs)
	}
	if err := AppendRunRecord(" ", RunRecord{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
