package errors

import stderrors "errors"

// Kind 错误分类，决定调用方的处理方式与 HTTP 状态码。
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidState
	KindInvalid
	KindUnauthorized
	KindTooManyRequests
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
	Kind    Kind
}

func (d Definition) Error() string {
	return d.Message
}

// 实体不存在。
var (
	UserNotFound    = Definition{Code: "USER_NOT_FOUND", Message: "User not found", Kind: KindNotFound}
	GoalNotFound    = Definition{Code: "GOAL_NOT_FOUND", Message: "Goal not found", Kind: KindNotFound}
	CheckInNotFound = Definition{Code: "CHECKIN_NOT_FOUND", Message: "Check-in not found", Kind: KindNotFound}
)

// 打卡状态流转错误。
var (
	CheckInAlreadyResponded = Definition{Code: "CHECKIN_ALREADY_RESPONDED", Message: "Check-in already responded", Kind: KindConflict}
	CheckInWindowClosed     = Definition{Code: "CHECKIN_WINDOW_CLOSED", Message: "Check-in window closed", Kind: KindInvalidState}
	CheckInNotDue           = Definition{Code: "CHECKIN_NOT_DUE", Message: "Goal is not due today", Kind: KindInvalidState}
	GoalNotActive           = Definition{Code: "GOAL_NOT_ACTIVE", Message: "Goal is not active", Kind: KindInvalidState}
	GoalStatusLocked        = Definition{Code: "GOAL_STATUS_LOCKED", Message: "Goal status does not allow this change", Kind: KindInvalidState}
	ScheduleInvalid         = Definition{Code: "SCHEDULE_INVALID", Message: "Goal schedule invalid", Kind: KindInvalidState}
)

// 请求参数错误。
var (
	InvalidRequest       = Definition{Code: "INVALID_REQUEST", Message: "Invalid request", Kind: KindInvalid}
	InvalidTimezone      = Definition{Code: "INVALID_TIMEZONE", Message: "Invalid timezone", Kind: KindInvalid}
	MediaTypeUnsupported = Definition{Code: "MEDIA_TYPE_UNSUPPORTED", Message: "Media type unsupported", Kind: KindInvalid}
)

// 认证相关错误。
var (
	Unauthorized    = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized", Kind: KindUnauthorized}
	TokenExpired    = Definition{Code: "TOKEN_EXPIRED", Message: "Token expired", Kind: KindUnauthorized}
	TokenInvalid    = Definition{Code: "TOKEN_INVALID", Message: "Token invalid", Kind: KindUnauthorized}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests", Kind: KindTooManyRequests}
)

// 基础设施错误，可重试。
var (
	StoreUnavailable = Definition{Code: "STORE_UNAVAILABLE", Message: "Store unavailable", Kind: KindTransient}
	StreakContention = Definition{Code: "STREAK_CONTENTION", Message: "Streak update contention, retry later", Kind: KindTransient}
	MediaUnavailable = Definition{Code: "MEDIA_UNAVAILABLE", Message: "Media storage unavailable", Kind: KindTransient}
	InternalError    = Definition{Code: "INTERNAL_ERROR", Message: "Internal error", Kind: KindInternal}
)

// SkipMessageError 消费者遇到重复消息时返回，消息直接 ack
var SkipMessageError = stderrors.New("skip duplicated message")

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	UserNotFound.Code:            UserNotFound,
	GoalNotFound.Code:            GoalNotFound,
	CheckInNotFound.Code:         CheckInNotFound,
	CheckInAlreadyResponded.Code: CheckInAlreadyResponded,
	CheckInWindowClosed.Code:     CheckInWindowClosed,
	CheckInNotDue.Code:           CheckInNotDue,
	GoalNotActive.Code:           GoalNotActive,
	GoalStatusLocked.Code:        GoalStatusLocked,
	ScheduleInvalid.Code:         ScheduleInvalid,
	InvalidRequest.Code:          InvalidRequest,
	InvalidTimezone.Code:         InvalidTimezone,
	MediaTypeUnsupported.Code:    MediaTypeUnsupported,
	Unauthorized.Code:            Unauthorized,
	TokenExpired.Code:            TokenExpired,
	TokenInvalid.Code:            TokenInvalid,
	TooManyRequests.Code:         TooManyRequests,
	StoreUnavailable.Code:        StoreUnavailable,
	StreakContention.Code:        StreakContention,
	MediaUnavailable.Code:        MediaUnavailable,
	InternalError.Code:           InternalError,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// As 沿 %w 链查找 Definition
func As(err error) (Definition, bool) {
	var def Definition
	if stderrors.As(err, &def) {
		return def, true
	}
	return Definition{}, false
}

// KindOf 返回错误所属分类，非 Definition 视为 Internal
func KindOf(err error) Kind {
	if def, ok := As(err); ok {
		return def.Kind
	}
	return KindInternal
}

// IsSkipMessageError 判断是否为重复消息
func IsSkipMessageError(err error) bool {
	return stderrors.Is(err, SkipMessageError)
}
