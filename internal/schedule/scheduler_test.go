package schedule

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"FitStreak/internal/model"
	"FitStreak/internal/model/dto"
	"FitStreak/internal/repository"
	"FitStreak/internal/repository/repotest"
	"FitStreak/internal/service"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events map[model.NotificationEvent]int
}

func (n *recordingNotifier) Notify(_ context.Context, _ int64, event model.NotificationEvent, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = map[model.NotificationEvent]int{}
	}
	n.events[event]++
}

func (n *recordingNotifier) count(event model.NotificationEvent) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[event]
}

type jobFixture struct {
	rows     *repository.GormStore
	clock    *clock.Manual
	notifier *recordingNotifier
	sched    *Scheduler
}

func newJobFixture(t *testing.T, now time.Time) *jobFixture {
	t.Helper()
	f := &jobFixture{
		rows:     repotest.NewStore(t),
		clock:    clock.NewManual(now),
		notifier: &recordingNotifier{},
	}
	f.sched = New(Deps{
		Rows:     f.rows,
		Clock:    f.clock,
		Notifier: f.notifier,
		// 小页面用于覆盖分页
		Options: Options{Workers: 4, BatchSize: 2, ItemTimeout: 30 * time.Second},
	})
	return f
}

func (f *jobFixture) setStatus(t *testing.T, goalID int64, patch repository.Patch) {
	t.Helper()
	if _, err := f.rows.Update(context.Background(), &model.Goal{}, patch, repository.Eq("id", goalID)); err != nil {
		t.Fatalf("update goal: %v", err)
	}
}

var daily = model.Schedule{Frequency: model.FrequencyDaily}

func weekly(t *testing.T, days ...int) model.Schedule {
	t.Helper()
	w, err := model.NewWeekdays(days...)
	if err != nil {
		t.Fatalf("weekdays: %v", err)
	}
	return model.Schedule{Frequency: model.FrequencyWeekly, Days: w}
}

func TestPrecreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	// 2024-01-02 是周二
	f := newJobFixture(t, time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC))
	user := repotest.CreateUser(t, f.rows, "UTC")

	for i := 0; i < 3; i++ {
		repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 1))
	}
	repotest.CreateGoal(t, f.rows, user, weekly(t, 1), clock.NewDate(2024, 1, 1))
	upcoming := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 9))
	f.setStatus(t, upcoming.ID, repository.Patch{"status": model.GoalStatusUpcoming})

	first, err := f.sched.Precreate(ctx)
	if err != nil {
		t.Fatalf("precreate: %v", err)
	}
	want := PrecreateResult{Scanned: 4, Created: 3, NotDue: 1}
	if first != want {
		t.Fatalf("first run: want %+v, got %+v", want, first)
	}

	second, err := f.sched.Precreate(ctx)
	if err != nil {
		t.Fatalf("precreate again: %v", err)
	}
	want = PrecreateResult{Scanned: 4, Skipped: 3, NotDue: 1}
	if second != want {
		t.Fatalf("second run: want %+v, got %+v", want, second)
	}

	rows, err := repository.NewCheckInStore(f.rows).ListByUserDate(ctx, user.ID, clock.NewDate(2024, 1, 2))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 check-ins, got %d", len(rows))
	}
}

func TestPrecreateCountsTimezoneFallback(t *testing.T) {
	ctx := context.Background()
	// UTC 已是 1 月 2 日，错误时区按 UTC 处理
	f := newJobFixture(t, time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC))
	user := repotest.CreateUser(t, f.rows, "Mars/Olympus_Mons")
	goal := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 1))

	res, err := f.sched.Precreate(ctx)
	if err != nil {
		t.Fatalf("precreate: %v", err)
	}
	if res.TimezoneFallbacks != 1 || res.Created != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := repository.NewCheckInStore(f.rows).Find(ctx, goal.ID, clock.NewDate(2024, 1, 2)); err != nil {
		t.Fatalf("expected UTC-dated check-in: %v", err)
	}
}

func TestSweepLosAngelesBoundary(t *testing.T) {
	ctx := context.Background()
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	f := newJobFixture(t, time.Date(2024, 1, 15, 23, 59, 0, 0, la))
	user := repotest.CreateUser(t, f.rows, "America/Los_Angeles")
	goal := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 15))
	checkIns := repository.NewCheckInStore(f.rows)
	if _, err := checkIns.CreateIfAbsent(ctx, goal.ID, user.ID, clock.NewDate(2024, 1, 15)); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := f.sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.NotElapsed != 1 || res.Missed != 0 {
		t.Fatalf("23:59 local must not be missed: %+v", res)
	}

	f.clock.Set(time.Date(2024, 1, 16, 0, 1, 0, 0, la))
	res, err = f.sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Missed != 1 {
		t.Fatalf("after local midnight the day is missed: %+v", res)
	}

	row, err := checkIns.Find(ctx, goal.ID, clock.NewDate(2024, 1, 15))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row.Status != model.CheckInStatusMissed {
		t.Fatalf("unexpected status %s", row.Status)
	}
	if f.notifier.count(model.NotificationEventCheckInMissed) != 1 {
		t.Fatal("expected one missed notification")
	}

	again, err := f.sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep again: %v", err)
	}
	if again.Scanned != 0 {
		t.Fatalf("re-run should find nothing, got %+v", again)
	}
}

func TestMissResetsCurrentKeepsLongest(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	user := repotest.CreateUser(t, f.rows, "UTC")
	goal := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 1))
	checkInSvc := service.NewCheckInService(service.Deps{Rows: f.rows, Clock: f.clock})

	complete := func() *dto.CheckInActionResponse {
		t.Helper()
		resp, err := checkInSvc.ActToday(ctx, user.PublicID, goal.ID, model.CheckInActionComplete, dto.CheckInActionRequest{})
		if err != nil {
			t.Fatalf("complete on %s: %v", clock.DateOf(f.clock.Now()), err)
		}
		return resp
	}

	for day := 0; day < 5; day++ {
		complete()
		f.clock.Advance(24 * time.Hour)
	}

	// 1 月 6 日生成记录但不响应
	if _, err := f.sched.Precreate(ctx); err != nil {
		t.Fatalf("precreate: %v", err)
	}
	f.clock.Advance(24 * time.Hour)

	res, err := f.sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Missed != 1 {
		t.Fatalf("expected one missed day, got %+v", res)
	}

	got, err := repository.NewGoalRepository(f.rows).FindByID(ctx, goal.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.CurrentStreak != 0 || got.LongestStreak != 5 || got.TotalCompletions != 5 {
		t.Fatalf("want current=0 longest=5 total=5, got %+v", got.Streak())
	}

	if resp := complete(); resp.CurrentStreak != 1 || resp.LongestStreak != 5 {
		t.Fatalf("want current=1 longest=5 after miss, got %d/%d", resp.CurrentStreak, resp.LongestStreak)
	}
}

func TestCompleteRacingSweepHasOneWinner(t *testing.T) {
	ctx := context.Background()
	day := clock.NewDate(2024, 1, 10)

	// 用户侧时钟仍在 1 月 10 日，清扫侧时钟已到 1 月 11 日
	f := newJobFixture(t, time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC))
	user := repotest.CreateUser(t, f.rows, "UTC")
	userClock := clock.NewManual(time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC))
	checkInSvc := service.NewCheckInService(service.Deps{Rows: f.rows, Clock: userClock})

	const n = 6
	ids := make([]int64, n)
	for i := range ids {
		goal := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 1))
		row, _, err := repository.NewCheckInStore(f.rows).Ensure(ctx, goal.ID, user.ID, day)
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		ids[i] = row.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		handled  int
		sweepRes SweepResult
		sweepErr error
	)
	wg.Add(n + 1)
	go func() {
		defer wg.Done()
		sweepRes, sweepErr = f.sched.Sweep(ctx)
	}()
	for _, id := range ids {
		go func(id int64) {
			defer wg.Done()
			_, err := checkInSvc.Act(ctx, user.PublicID, id, model.CheckInActionComplete, dto.CheckInActionRequest{})
			switch {
			case err == nil:
				mu.Lock()
				handled++
				mu.Unlock()
			case stderrors.Is(err, errors.CheckInAlreadyResponded):
			default:
				t.Errorf("act %d: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if sweepErr != nil {
		t.Fatalf("sweep: %v", sweepErr)
	}
	if sweepRes.Failed != 0 {
		t.Fatalf("sweep failures: %+v", sweepRes)
	}
	if handled+sweepRes.Missed != n {
		t.Fatalf("each check-in needs exactly one winner: handled=%d sweep=%+v", handled, sweepRes)
	}

	checkIns := repository.NewCheckInStore(f.rows)
	for _, id := range ids {
		row, err := checkIns.FindOwned(ctx, id, user.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if !row.Status.IsTerminal() {
			t.Fatalf("check-in %d still %s", id, row.Status)
		}
	}
}

func TestWeeklyScheduleAcrossTimezones(t *testing.T) {
	zones := []string{"UTC", "America/Los_Angeles", "Asia/Tokyo", "Pacific/Kiritimati", "Pacific/Pago_Pago"}
	for _, tz := range zones {
		t.Run(tz, func(t *testing.T) {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				t.Skipf("tzdata unavailable: %v", err)
			}
			ctx := context.Background()
			f := newJobFixture(t, time.Date(2024, 1, 1, 12, 0, 0, 0, loc))
			user := repotest.CreateUser(t, f.rows, tz)
			goal := repotest.CreateGoal(t, f.rows, user, weekly(t, 1, 3, 5), clock.NewDate(2024, 1, 1))

			for day := 1; day <= 31; day++ {
				// 每天本地时间早晚各运行一次
				for _, hour := range []int{0, 23} {
					f.clock.Set(time.Date(2024, 1, day, hour, 30, 0, 0, loc))
					if _, err := f.sched.Precreate(ctx); err != nil {
						t.Fatalf("precreate on %d: %v", day, err)
					}
				}
			}

			rows, err := repository.NewCheckInStore(f.rows).ListAllByGoal(ctx, goal.ID)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			// 2024 年 1 月：周一 5 次、周三 5 次、周五 4 次
			if len(rows) != 14 {
				t.Fatalf("expected 14 check-ins, got %d", len(rows))
			}
			for _, row := range rows {
				switch row.Date.Weekday() {
				case time.Monday, time.Wednesday, time.Friday:
				default:
					t.Fatalf("check-in on %s (%s)", row.Date, row.Date.Weekday())
				}
			}
		})
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	user := repotest.CreateUser(t, f.rows, "UTC")
	goals := repository.NewGoalRepository(f.rows)

	starting := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 10))
	f.setStatus(t, starting.ID, repository.Patch{"status": model.GoalStatusUpcoming})

	later := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 11))
	f.setStatus(t, later.ID, repository.Patch{"status": model.GoalStatusUpcoming})

	ended := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 1))
	f.setStatus(t, ended.ID, repository.Patch{"end_date": clock.NewDate(2024, 1, 9)})

	endsToday := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 1))
	f.setStatus(t, endsToday.ID, repository.Patch{"end_date": clock.NewDate(2024, 1, 10)})

	res, err := f.sched.Lifecycle(ctx)
	if err != nil {
		t.Fatalf("lifecycle: %v", err)
	}
	// 新激活的目标在第二轮扫描 active 时也会被看到
	if res.Activated != 1 || res.Completed != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	want := map[int64]model.GoalStatus{
		starting.ID:  model.GoalStatusActive,
		later.ID:     model.GoalStatusUpcoming,
		ended.ID:     model.GoalStatusCompleted,
		endsToday.ID: model.GoalStatusActive,
	}
	for id, status := range want {
		g, err := goals.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find %d: %v", id, err)
		}
		if g.Status != status {
			t.Fatalf("goal %d: want %s, got %s", id, status, g.Status)
		}
	}
}

func TestReminderFiresOnceAfterReminderHour(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t, time.Date(2024, 1, 10, 19, 0, 0, 0, time.UTC))
	user := repotest.CreateUser(t, f.rows, "UTC") // reminder_hour = 20
	goal := repotest.CreateGoal(t, f.rows, user, daily, clock.NewDate(2024, 1, 1))
	if _, err := repository.NewCheckInStore(f.rows).CreateIfAbsent(ctx, goal.ID, user.ID, clock.NewDate(2024, 1, 10)); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := f.sched.Remind(ctx)
	if err != nil {
		t.Fatalf("remind: %v", err)
	}
	if res.NotYet != 1 || res.Reminded != 0 {
		t.Fatalf("19:00 is before reminder hour: %+v", res)
	}

	f.clock.Set(time.Date(2024, 1, 10, 20, 30, 0, 0, time.UTC))
	if res, err = f.sched.Remind(ctx); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if res.Reminded != 1 {
		t.Fatalf("expected one reminder: %+v", res)
	}

	if res, err = f.sched.Remind(ctx); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if res.Scanned != 0 || f.notifier.count(model.NotificationEventCheckInReminder) != 1 {
		t.Fatalf("reminder must fire once: %+v", res)
	}
}

type stubLocker struct {
	ok       bool
	err      error
	released int
}

func (l *stubLocker) Acquire(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return func(context.Context) { l.released++ }, l.ok, l.err
}

func TestRunGuards(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))

	t.Run("running in process", func(t *testing.T) {
		if !f.sched.enter(JobPrecreate) {
			t.Fatal("enter should succeed")
		}
		defer f.sched.leave(JobPrecreate)
		if _, err := f.sched.Precreate(ctx); !stderrors.Is(err, ErrJobRunning) {
			t.Fatalf("expected ErrJobRunning, got %v", err)
		}
	})

	t.Run("locked by another instance", func(t *testing.T) {
		f.sched.locker = &stubLocker{ok: false}
		if _, err := f.sched.Sweep(ctx); !stderrors.Is(err, ErrJobLocked) {
			t.Fatalf("expected ErrJobLocked, got %v", err)
		}
	})

	t.Run("lock acquired and released", func(t *testing.T) {
		locker := &stubLocker{ok: true}
		f.sched.locker = locker
		if _, err := f.sched.Sweep(ctx); err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if locker.released != 1 {
			t.Fatalf("lock released %d times", locker.released)
		}
	})

	t.Run("lock backend down", func(t *testing.T) {
		f.sched.locker = &stubLocker{err: stderrors.New("redis: connection refused")}
		if _, err := f.sched.Lifecycle(ctx); err != nil {
			t.Fatalf("job should run without the lock: %v", err)
		}
	})
}
