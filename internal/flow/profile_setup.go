package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/weather"
)

func (e *Engine) cmdSetProfile(ctx context.Context, userID, args string) (Reply, error) {
	if err := e.sessions.Clear(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("clear session: %w", err)
	}
	if err := e.setState(ctx, userID, models.StateProfileWeight); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgAskWeight}, nil
}

// profileStep stores one validated answer and moves to the next question.
func (e *Engine) profileStep(ctx context.Context, userID string, key models.DataKey, value string, next models.StateType, prompt string) (Reply, error) {
	if err := e.sessions.UpdateBuffer(ctx, userID, map[models.DataKey]string{key: value}); err != nil {
		return Reply{}, fmt.Errorf("update buffer: %w", err)
	}
	if err := e.setState(ctx, userID, next); err != nil {
		return Reply{}, err
	}
	return Reply{Text: prompt}, nil
}

func (e *Engine) handleProfileWeight(ctx context.Context, userID, text string) (Reply, error) {
	v, ok := parsePositiveFloat(text, maxWeightKg)
	if !ok {
		return Reply{Text: msgBadWeight}, nil
	}
	return e.profileStep(ctx, userID, models.DataKeyWeight, formatFloat(v), models.StateProfileHeight, msgAskHeight)
}

func (e *Engine) handleProfileHeight(ctx context.Context, userID, text string) (Reply, error) {
	v, ok := parsePositiveFloat(text, maxHeightCm)
	if !ok {
		return Reply{Text: msgBadHeight}, nil
	}
	return e.profileStep(ctx, userID, models.DataKeyHeight, formatFloat(v), models.StateProfileAge, msgAskAge)
}

func (e *Engine) handleProfileAge(ctx context.Context, userID, text string) (Reply, error) {
	v, ok := parseInt(text, 1, maxAge)
	if !ok {
		return Reply{Text: msgBadAge}, nil
	}
	return e.profileStep(ctx, userID, models.DataKeyAge, strconv.Itoa(v), models.StateProfileActivity, msgAskActivity)
}

func (e *Engine) handleProfileActivity(ctx context.Context, userID, text string) (Reply, error) {
	v, ok := parseInt(text, 0, maxMinutes)
	if !ok {
		return Reply{Text: msgBadMinutes}, nil
	}
	return e.profileStep(ctx, userID, models.DataKeyActivity, strconv.Itoa(v), models.StateProfileCity, msgAskCity)
}

// handleProfileCity commits the profile once the city's weather is known.
// A failed lookup keeps the buffer and the state so the user can retry.
func (e *Engine) handleProfileCity(ctx context.Context, userID, text string) (Reply, error) {
	if text == "" {
		return Reply{Text: msgAskCity}, nil
	}
	buf, err := e.sessions.GetBuffer(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("load buffer: %w", err)
	}
	p, err := profileFromBuffer(userID, text, buf)
	if err != nil {
		return Reply{}, err
	}

	temp, err := e.tracker.Temperature(ctx, p.City)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, weather.ErrCityNotFound) {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "Engine.handleProfileCity: weather lookup failed, profile not saved", "userID", userID, "city", p.City, "error", err)
		return Reply{Text: msgBadCity}, nil
	}

	// A repeated setup keeps the existing history.
	if existing, err := e.profiles.Get(ctx, userID); err == nil {
		p.DailyStats = existing.DailyStats
	} else if !errors.Is(err, models.ErrProfileNotFound) {
		return Reply{}, fmt.Errorf("load existing profile: %w", err)
	}
	rec := e.tracker.ResetTodayGoals(p, temp)
	if err := e.profiles.Put(ctx, p); err != nil {
		return Reply{}, fmt.Errorf("store profile: %w", err)
	}
	slog.Info("Engine.handleProfileCity: profile saved", "userID", userID, "city", p.City,
		"waterGoal", rec.WaterGoal, "calorieGoal", rec.CalorieGoal)

	return e.finish(ctx, userID, Reply{Text: fmt.Sprintf(msgProfileDoneFmt,
		p.City, temp, rec.WaterGoal, rec.CalorieGoal, e.commandList())})
}

func profileFromBuffer(userID, city string, buf map[models.DataKey]string) (*models.UserProfile, error) {
	weight, err := bufferFloat(buf, models.DataKeyWeight)
	if err != nil {
		return nil, err
	}
	height, err := bufferFloat(buf, models.DataKeyHeight)
	if err != nil {
		return nil, err
	}
	age, err := bufferInt(buf, models.DataKeyAge)
	if err != nil {
		return nil, err
	}
	activity, err := bufferInt(buf, models.DataKeyActivity)
	if err != nil {
		return nil, err
	}
	p := &models.UserProfile{
		UserID:          userID,
		Weight:          weight,
		Height:          height,
		Age:             age,
		ActivityMinutes: activity,
		City:            city,
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedBuffer, err)
	}
	return p, nil
}
