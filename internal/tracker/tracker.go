// Package tracker manages the lifecycle of per-day tracking records.
//
// A record for a date is created the first time that date is accessed, with
// goals derived from the current temperature of the user's city. Later
// accesses on the same date return the stored record untouched.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/goals"
	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/google/uuid"
)

// WeatherLookup returns the current temperature in °C for a city.
type WeatherLookup interface {
	Temperature(ctx context.Context, city string) (float64, error)
}

// Opts holds configuration options for the Tracker.
type Opts struct {
	Now      func() time.Time
	Location *time.Location
}

// Option defines a configuration option for the Tracker.
type Option func(*Opts)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// WithLocation sets the location whose calendar decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) { o.Location = loc }
}

// Tracker is the daily stats lifecycle manager.
type Tracker struct {
	weather WeatherLookup
	now     func() time.Time
	loc     *time.Location
}

// New creates a Tracker using weather for temperature lookups.
func New(weather WeatherLookup, opts ...Option) *Tracker {
	cfg := Opts{Now: time.Now, Location: time.Local}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Tracker{weather: weather, now: cfg.Now, loc: cfg.Location}
}

// Now returns the current time in the tracker's location.
func (t *Tracker) Now() time.Time {
	return t.now().In(t.loc)
}

// Today returns the current calendar date as YYYY-MM-DD.
func (t *Tracker) Today() string {
	return t.Now().Format(models.DateLayout)
}

// DateOffset returns the date days before today as YYYY-MM-DD.
func (t *Tracker) DateOffset(days int) string {
	return t.Now().AddDate(0, 0, -days).Format(models.DateLayout)
}

// GetOrCreateToday returns today's record for profile, creating it when absent.
// The bool result reports whether the record was created by this call.
// A failed weather lookup is not an error: goals fall back to FallbackTemperature.
func (t *Tracker) GetOrCreateToday(ctx context.Context, profile *models.UserProfile) (*models.DailyRecord, bool) {
	today := t.Today()
	if rec, ok := profile.Record(today); ok {
		return rec, false
	}

	rec := &models.DailyRecord{Date: today}
	temp, err := t.lookup(ctx, profile.City)
	if err != nil {
		slog.Warn("Tracker.GetOrCreateToday: weather lookup failed, using fallback temperature",
			"userID", profile.UserID, "city", profile.City, "fallback", goals.FallbackTemperature, "error", err)
		temp = goals.FallbackTemperature
	}
	ApplyGoals(profile, rec, temp)
	profile.SetRecord(rec)

	slog.Info("Tracker.GetOrCreateToday: created daily record",
		"userID", profile.UserID, "date", today, "temperature", temp, "waterGoal", rec.WaterGoal, "calorieGoal", rec.CalorieGoal)
	return rec, true
}

// RefreshGoalsIfNeeded re-fetches the temperature and recomputes today's goals.
// It returns a notice only when the temperature moved by more than the refresh
// threshold; smaller changes are applied silently. A failed lookup changes nothing.
func (t *Tracker) RefreshGoalsIfNeeded(ctx context.Context, profile *models.UserProfile) string {
	rec, created := t.GetOrCreateToday(ctx, profile)
	if created {
		// Goals were just computed from a fresh lookup.
		return ""
	}

	temp, err := t.lookup(ctx, profile.City)
	if err != nil {
		slog.Debug("Tracker.RefreshGoalsIfNeeded: weather lookup failed, keeping goals", "userID", profile.UserID, "error", err)
		return ""
	}

	oldTemp := rec.Temperature
	ApplyGoals(profile, rec, temp)
	if !goals.SignificantChange(oldTemp, temp) {
		slog.Debug("Tracker.RefreshGoalsIfNeeded: goals updated silently", "userID", profile.UserID, "old", oldTemp, "new", temp)
		return ""
	}

	slog.Info("Tracker.RefreshGoalsIfNeeded: significant temperature change",
		"userID", profile.UserID, "old", oldTemp, "new", temp, "waterGoal", rec.WaterGoal)
	return fmt.Sprintf("🌡️ The temperature in %s changed from %.0f°C to %.0f°C.\n💧 Your water goal for today is now %.0f ml.",
		profile.City, oldTemp, temp, rec.WaterGoal)
}

// Temperature looks up the current temperature of city without touching any record.
func (t *Tracker) Temperature(ctx context.Context, city string) (float64, error) {
	return t.lookup(ctx, city)
}

// ResetTodayGoals computes today's goals at a known temperature, creating the
// record when absent. Logged counters and entries of an existing record are kept.
func (t *Tracker) ResetTodayGoals(profile *models.UserProfile, temp float64) *models.DailyRecord {
	today := t.Today()
	rec, ok := profile.Record(today)
	if !ok {
		rec = &models.DailyRecord{Date: today}
		profile.SetRecord(rec)
	}
	ApplyGoals(profile, rec, temp)
	return rec
}

// ApplyGoals recomputes both goals of rec from profile at temperature temp.
func ApplyGoals(profile *models.UserProfile, rec *models.DailyRecord, temp float64) {
	rec.WaterGoal = goals.WaterGoal(profile.Weight, profile.ActivityMinutes, temp)
	rec.CalorieGoal = goals.CalorieGoal(profile.Weight, profile.Height, profile.Age, profile.ActivityMinutes)
	rec.Temperature = temp
}

// NewFoodEntry stamps a food log entry with a fresh id and the current time.
func (t *Tracker) NewFoodEntry(name string, weightG, calories float64) models.FoodEntry {
	return models.FoodEntry{
		ID:        uuid.NewString(),
		Name:      name,
		WeightG:   weightG,
		Calories:  calories,
		Timestamp: t.Now(),
	}
}

// NewWorkoutEntry stamps a workout log entry with a fresh id and the current time.
func (t *Tracker) NewWorkoutEntry(kind string, durationMin int, calories, waterML float64) models.WorkoutEntry {
	return models.WorkoutEntry{
		ID:          uuid.NewString(),
		Type:        kind,
		DurationMin: durationMin,
		Calories:    calories,
		WaterML:     waterML,
		Timestamp:   t.Now(),
	}
}

func (t *Tracker) lookup(ctx context.Context, city string) (float64, error) {
	if t.weather == nil {
		return 0, models.ErrLookupUnavailable
	}
	return t.weather.Temperature(ctx, city)
}
