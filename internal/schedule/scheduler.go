package schedule

// 后台任务：预创建打卡、清扫漏打卡、目标生命周期、提醒
// 每个任务按 id 分页扫描，页内由固定数量的 worker 并发处理，单条失败只计数

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"FitStreak/config"
	"FitStreak/internal/repository"
	"FitStreak/internal/service"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/logger"
	"FitStreak/pkg/metrics"
)

const (
	JobPrecreate = "precreate"
	JobSweep     = "sweep"
	JobLifecycle = "lifecycle"
	JobReminder  = "reminder"
)

var (
	// ErrJobRunning 本进程内上一次执行尚未结束
	ErrJobRunning = stderrors.New("job already running")
	// ErrJobLocked 其他副本持有任务锁
	ErrJobLocked = stderrors.New("job locked by another instance")
)

// Locker 跨进程任务锁，release 幂等
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

type Options struct {
	Workers     int
	BatchSize   int
	ItemTimeout time.Duration
	// LockTTL 任务锁过期时间，不小于单次执行超时
	LockTTL time.Duration
}

func OptionsFromConfig() Options {
	return Options{
		Workers:     config.Cfg.JobWorkers,
		BatchSize:   config.Cfg.JobBatchSize,
		ItemTimeout: config.Cfg.JobItemTimeout,
		LockTTL:     config.Cfg.JobRunTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.ItemTimeout <= 0 {
		o.ItemTimeout = 5 * time.Second
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 20 * time.Minute
	}
	return o
}

type Deps struct {
	Rows      repository.RowStore
	Clock     clock.Clock
	Notifier  service.Notifier
	Timezones service.TimezoneCache
	Locker    Locker
	Options   Options
}

type Scheduler struct {
	logger    *zap.Logger
	rows      repository.RowStore
	clock     clock.Clock
	notifier  service.Notifier
	timezones service.TimezoneCache
	locker    Locker
	opts      Options

	mu      sync.Mutex
	running map[string]bool
}

func New(deps Deps) *Scheduler {
	if deps.Clock == nil {
		deps.Clock = clock.SystemClock{}
	}
	if deps.Notifier == nil {
		deps.Notifier = service.NopNotifier{}
	}
	return &Scheduler{
		logger:    logger.Logger,
		rows:      deps.Rows,
		clock:     deps.Clock,
		notifier:  deps.Notifier,
		timezones: deps.Timezones,
		locker:    deps.Locker,
		opts:      deps.Options.withDefaults(),
		running:   make(map[string]bool),
	}
}

// run 包装单次任务执行：进程内互斥、跨副本锁、日志与指标
func (s *Scheduler) run(ctx context.Context, job string, fn func(ctx context.Context) (*tally, error)) error {
	if !s.enter(job) {
		s.logger.Info("Job already running, skipping", zap.String("job", job))
		metrics.RecordJobSkipped(ctx, job, "running")
		return ErrJobRunning
	}
	defer s.leave(job)

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, "job:"+job, s.opts.LockTTL)
		switch {
		case err != nil:
			// 锁只用于减少重复工作，Redis 不可用时照常执行
			s.logger.Warn("Failed to acquire job lock, running without it",
				zap.String("job", job),
				zap.Error(err),
			)
		case !ok:
			s.logger.Info("Job locked by another instance, skipping", zap.String("job", job))
			metrics.RecordJobSkipped(ctx, job, "locked")
			return ErrJobLocked
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	start := time.Now()
	s.logger.Info("Job started", zap.String("job", job))

	t, err := fn(ctx)
	elapsed := time.Since(start)
	counts := t.snapshot()

	fields := []zap.Field{zap.String("job", job), zap.Duration("duration", elapsed), zap.Any("outcomes", counts)}
	if err != nil {
		s.logger.Error("Job aborted", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("Job finished", fields...)
	}
	metrics.RecordJobRun(ctx, job, counts, elapsed.Seconds(), err != nil)

	if err != nil {
		return fmt.Errorf("%s job: %w", job, err)
	}
	return nil
}

func (s *Scheduler) enter(job string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[job] {
		return false
	}
	s.running[job] = true
	return true
}

func (s *Scheduler) leave(job string) {
	s.mu.Lock()
	s.running[job] = false
	s.mu.Unlock()
}

// each 用 Workers 个并发处理一页数据，每条记录一个独立超时
func (s *Scheduler) each(ctx context.Context, n int, item func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(ctx, s.opts.ItemTimeout)
			defer cancel()
			item(itemCtx, i)
			return nil
		})
	}
	_ = g.Wait()
}

// timezonesFor 先查缓存，未命中的从数据库补齐并回填
func (s *Scheduler) timezonesFor(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	ids := unique(userIDs)

	zones := map[int64]string{}
	if s.timezones != nil {
		for id, tz := range s.timezones.GetMany(ctx, ids) {
			zones[id] = tz
		}
	}

	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := zones[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return zones, nil
	}

	users, err := repository.NewUserRepository(s.rows).FindByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load timezones: %w", err)
	}
	fresh := make(map[int64]string, len(users))
	for id, u := range users {
		fresh[id] = u.TimezoneOrDefault()
		zones[id] = fresh[id]
	}
	if s.timezones != nil && len(fresh) > 0 {
		s.timezones.SetMany(ctx, fresh)
	}
	return zones, nil
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// 结果分类
const (
	outcomeCreated    = "created"
	outcomeSkipped    = "skipped"
	outcomeNotDue     = "not_due"
	outcomeFailed     = "failed"
	outcomeFallback   = "timezone_fallback"
	outcomeMissed     = "missed"
	outcomeNotElapsed = "not_elapsed"
	outcomeActivated  = "activated"
	outcomeCompleted  = "completed"
	outcomeUnchanged  = "unchanged"
	outcomeReminded   = "reminded"
	outcomeNotYet     = "not_yet"
	outcomeScanned    = "scanned"
)

// tally 并发安全的计数器
type tally struct {
	mu sync.Mutex
	n  map[string]int
}

func newTally() *tally {
	return &tally{n: make(map[string]int)}
}

func (t *tally) add(outcome string, delta int) {
	t.mu.Lock()
	t.n[outcome] += delta
	t.mu.Unlock()
}

func (t *tally) get(outcome string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n[outcome]
}

func (t *tally) snapshot() map[string]int {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.n))
	for k, v := range t.n {
		out[k] = v
	}
	return out
}
