package clock

import (
	"sync"
	"time"

	// 内嵌 IANA 时区数据，不依赖宿主机
	_ "time/tzdata"

	"go.uber.org/zap"

	"FitStreak/pkg/logger"
)

// DefaultTimezone 用户未设置或设置非法时使用
const DefaultTimezone = "UTC"

// Clock 可注入的当前时间来源
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Func 适配普通函数
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Manual 手动推进的时钟，供测试与回放使用
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

var locations sync.Map // name -> *time.Location

// LoadLocation 解析 IANA 时区，失败时回退 UTC，ok=false 表示发生了回退
// "Local" 依赖宿主机配置，不接受
func LoadLocation(tz string) (*time.Location, bool) {
	if tz == "" || tz == "Local" {
		return time.UTC, false
	}
	if loc, hit := locations.Load(tz); hit {
		return loc.(*time.Location), true
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, false
	}
	locations.Store(tz, loc)
	return loc, true
}

// ValidTimezone 用于写入前校验
func ValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, ok := LoadLocation(tz)
	return ok
}

// Today 某用户时区下的"今天"
type Today struct {
	Date     Date
	Weekday  time.Weekday
	Location *time.Location
	// Fallback 时区无法解析，已按 UTC 计算
	Fallback bool
}

// Resolve 计算 tz 下 now 对应的日期，从不返回错误
func Resolve(tz string, now time.Time) Today {
	loc, ok := LoadLocation(tz)
	fallback := !ok && tz != ""
	if fallback {
		logger.Logger.Warn("Invalid timezone, falling back to UTC",
			zap.String("timezone", tz),
		)
	}

	local := now.In(loc)
	return Today{
		Date:     DateOf(local),
		Weekday:  local.Weekday(),
		Location: loc,
		Fallback: fallback,
	}
}

// ResolveToday 返回日期与星期（0=周日）
func ResolveToday(tz string, now time.Time) (Date, time.Weekday) {
	t := Resolve(tz, now)
	return t.Date, t.Weekday
}

// latestZone 地球上最靠前的时区偏移（Pacific/Kiritimati, UTC+14）
var latestZone = time.FixedZone("UTC+14", 14*60*60)

// earliestZone 最靠后的时区偏移（UTC-12）
var earliestZone = time.FixedZone("UTC-12", -12*60*60)

// EarliestToday 任何时区下"今天"的下界
func EarliestToday(now time.Time) Date {
	return DateOf(now.In(earliestZone))
}

// LatestToday 任何时区下"今天"的上界，日期早于它的记录才可能已经过期
func LatestToday(now time.Time) Date {
	return DateOf(now.In(latestZone))
}
