package service

import (
	"strconv"

	"FitStreak/internal/model"
	"FitStreak/internal/model/dto"
)

func toCheckInData(c *model.CheckIn) dto.CheckInData {
	return dto.CheckInData{
		ID:          strconv.FormatInt(c.ID, 10),
		GoalID:      strconv.FormatInt(c.GoalID, 10),
		Date:        c.Date,
		Status:      string(c.Status),
		Mood:        c.Mood,
		Note:        c.Note,
		SkipReason:  c.SkipReason,
		MediaKeys:   []string(c.MediaKeys),
		AIResponse:  c.AIResponse,
		RespondedAt: c.RespondedAt,
	}
}

func toGoalData(g *model.Goal, today *model.CheckIn) dto.GoalData {
	data := dto.GoalData{
		ID:               strconv.FormatInt(g.ID, 10),
		PublicID:         strconv.FormatInt(g.PublicID, 10),
		Title:            g.Title,
		Description:      g.Description,
		Frequency:        string(g.Frequency),
		Status:           string(g.Status),
		DaysOfWeek:       g.DaysOfWeek.List(),
		StartDate:        g.StartDate,
		EndDate:          g.EndDate,
		CurrentStreak:    g.CurrentStreak,
		LongestStreak:    g.LongestStreak,
		TotalCompletions: g.TotalCompletions,
		LastCompletedOn:  g.LastCompletedOn,
	}
	if today != nil {
		c := toCheckInData(today)
		data.TodayCheckIn = &c
	}
	return data
}

func toStreakData(g *model.Goal, s model.Streak) dto.StreakData {
	return dto.StreakData{
		GoalID:           strconv.FormatInt(g.ID, 10),
		CurrentStreak:    s.Current,
		LongestStreak:    s.Longest,
		TotalCompletions: s.Total,
		LastCompletedOn:  s.LastCompletedOn,
	}
}
