package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"FitStreak/internal/model"
	"FitStreak/internal/model/dto"
	"FitStreak/internal/repository"
	"FitStreak/pkg/clock"
	"FitStreak/pkg/errors"
	"FitStreak/pkg/logger"
	"FitStreak/utils"
)

// api 中的 userID 是 public_id

const maxNicknameRunes = 64

type UserService struct {
	rows      repository.RowStore
	timezones TimezoneCache
}

func NewUserService(deps Deps) *UserService {
	deps = deps.withDefaults()
	return &UserService{rows: deps.Rows, timezones: deps.Timezones}
}

// Profile 用户资料，手机号只返回掩码
func (s *UserService) Profile(ctx context.Context, userPublicID int64) (*dto.UserProfileData, error) {
	user, err := repository.NewUserRepository(s.rows).FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}
	return toProfile(user), nil
}

func toProfile(user *model.User) *dto.UserProfileData {
	data := &dto.UserProfileData{
		PublicID: strconv.FormatInt(user.PublicID, 10),
		Nickname: user.Nickname,
		Status:   string(user.Status),
		Email:    user.Email,
		Settings: dto.UserSettingsDTO{
			Timezone:     user.TimezoneOrDefault(),
			ReminderHour: user.ReminderHour,
			NotifySMS:    user.NotifySMS,
			NotifyEmail:  user.NotifyEmail,
		},
	}

	if user.PhoneCipher != nil && *user.PhoneCipher != "" {
		data.Phone.Bound = true
		if phone, err := utils.DecryptPhone(*user.PhoneCipher); err == nil {
			data.Phone.NumberMasked = utils.MaskPhone(phone)
		} else {
			logger.Logger.Warn("Failed to decrypt phone",
				zap.Int64("user_id", user.ID),
				zap.Error(err),
			)
		}
	}
	return data
}

// UpdateSettings nil 字段保持不变，修改时区后清除缓存
func (s *UserService) UpdateSettings(
	ctx context.Context,
	userPublicID int64,
	req dto.UpdateUserSettingsRequest,
) (*dto.UserProfileData, error) {
	patch, err := settingsPatch(req)
	if err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(s.rows)
	user, err := users.FindByPublicID(ctx, userPublicID)
	if err != nil {
		return nil, err
	}

	if len(patch) > 0 {
		if err := users.Update(ctx, user.ID, patch); err != nil {
			return nil, err
		}

		columns := make([]string, 0, len(patch))
		for k := range patch {
			columns = append(columns, k)
		}
		logger.Logger.Info("User settings updated",
			zap.Int64("user_id", user.ID),
			zap.Strings("columns", columns),
		)

		if _, ok := patch["timezone"]; ok && s.timezones != nil {
			s.timezones.Invalidate(ctx, user.ID)
		}
	}

	updated, err := users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return toProfile(updated), nil
}

func settingsPatch(req dto.UpdateUserSettingsRequest) (repository.Patch, error) {
	patch := repository.Patch{}

	if req.Nickname != nil {
		nickname := strings.TrimSpace(*req.Nickname)
		if utf8.RuneCountInString(nickname) > maxNicknameRunes {
			return nil, fmt.Errorf("%w: nickname longer than %d characters", errors.InvalidRequest, maxNicknameRunes)
		}
		patch["nickname"] = nickname
	}

	if req.Timezone != nil {
		if !clock.ValidTimezone(*req.Timezone) {
			return nil, errors.InvalidTimezone
		}
		patch["timezone"] = *req.Timezone
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		switch {
		case email == "":
			patch["email"] = nil
		case utils.ValidateEmail(email):
			patch["email"] = email
		default:
			return nil, fmt.Errorf("%w: invalid email", errors.InvalidRequest)
		}
	}

	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		switch {
		case phone == "":
			patch["phone_cipher"] = nil
		case utils.ValidatePhone(phone):
			cipher, err := utils.EncryptPhone(phone)
			if err != nil {
				return nil, fmt.Errorf("encrypt phone: %w", err)
			}
			patch["phone_cipher"] = cipher
		default:
			return nil, fmt.Errorf("%w: phone must be E.164", errors.InvalidRequest)
		}
	}

	if req.ReminderHour != nil {
		if *req.ReminderHour < 0 || *req.ReminderHour > 23 {
			return nil, fmt.Errorf("%w: reminder_hour must be 0-23", errors.InvalidRequest)
		}
		patch["reminder_hour"] = *req.ReminderHour
	}
	if req.NotifySMS != nil {
		patch["notify_sms"] = *req.NotifySMS
	}
	if req.NotifyEmail != nil {
		patch["notify_email"] = *req.NotifyEmail
	}

	return patch, nil
}
