package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the ISO calendar date format used for daily record keys.
const DateLayout = "2006-01-02"

// FoodEntry is one logged meal.
type FoodEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	WeightG   float64   `json:"weight_g"`
	Calories  float64   `json:"calories"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkoutEntry is one logged workout.
type WorkoutEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	DurationMin int       `json:"duration_min"`
	Calories    float64   `json:"calories"`
	WaterML     float64   `json:"water_ml"`
	Timestamp   time.Time `json:"timestamp"`
}

// DailyRecord accumulates tracking data and goals for one user on one date.
// The logged and burned counters only ever grow; FoodLog and WorkoutLog are append-only.
type DailyRecord struct {
	Date           string         `json:"date"`
	LoggedWater    float64        `json:"logged_water"`
	LoggedCalories float64        `json:"logged_calories"`
	BurnedCalories float64        `json:"burned_calories"`
	WaterGoal      float64        `json:"water_goal"`
	CalorieGoal    float64        `json:"calorie_goal"`
	Temperature    float64        `json:"temperature"`
	FoodLog        []FoodEntry    `json:"food_log"`
	WorkoutLog     []WorkoutEntry `json:"workout_log"`
}

// RemainingWater returns how much water is left to reach the goal, never negative.
func (r *DailyRecord) RemainingWater() float64 {
	return max(0, r.WaterGoal-r.LoggedWater)
}

// CalorieBalance returns consumed minus burned calories.
func (r *DailyRecord) CalorieBalance() float64 {
	return r.LoggedCalories - r.BurnedCalories
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AddWater increments the logged water. The record is unchanged on error.
func (r *DailyRecord) AddWater(ml float64) error {
	if ml <= 0 || !finite(ml, r.LoggedWater+ml) {
		return ErrInvalidAmount
	}
	r.LoggedWater += ml
	return nil
}

// AddFood appends a meal and increments the logged calories.
func (r *DailyRecord) AddFood(e FoodEntry) error {
	if e.WeightG <= 0 || e.Calories < 0 || !finite(e.WeightG, e.Calories, r.LoggedCalories+e.Calories) {
		return ErrInvalidAmount
	}
	r.FoodLog = append(r.FoodLog, e)
	r.LoggedCalories += e.Calories
	return nil
}

// AddWorkout appends a workout and increments the burned calories.
func (r *DailyRecord) AddWorkout(e WorkoutEntry) error {
	if e.DurationMin <= 0 || e.Calories < 0 || !finite(e.Calories, e.WaterML, r.BurnedCalories+e.Calories) {
		return ErrInvalidAmount
	}
	r.WorkoutLog = append(r.WorkoutLog, e)
	r.BurnedCalories += e.Calories
	return nil
}

// Clone returns a deep copy of the record.
func (r *DailyRecord) Clone() *DailyRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.FoodLog = append([]FoodEntry(nil), r.FoodLog...)
	c.WorkoutLog = append([]WorkoutEntry(nil), r.WorkoutLog...)
	return &c
}

// UserProfile holds a user's biometrics and their per-date records.
type UserProfile struct {
	UserID          string                  `json:"user_id"`
	Weight          float64                 `json:"weight"`
	Height          float64                 `json:"height"`
	Age             int                     `json:"age"`
	ActivityMinutes int                     `json:"activity_minutes"`
	City            string                  `json:"city"`
	DailyStats      map[string]*DailyRecord `json:"daily_stats"`
}

// Validate checks the biometric fields.
func (p *UserProfile) Validate() error {
	if p.UserID == "" {
		return ErrEmptyUserID
	}
	if p.Weight <= 0 || p.Height <= 0 || p.Age <= 0 || p.ActivityMinutes < 0 {
		return fmt.Errorf("%w: weight, height and age must be positive, activity non-negative", ErrInvalidProfile)
	}
	if p.City == "" {
		return fmt.Errorf("%w: city is required", ErrInvalidProfile)
	}
	return nil
}

// Record returns the stored record for date, if any.
func (p *UserProfile) Record(date string) (*DailyRecord, bool) {
	r, ok := p.DailyStats[date]
	return r, ok
}

// SetRecord stores rec under its date.
func (p *UserProfile) SetRecord(rec *DailyRecord) {
	if p.DailyStats == nil {
		p.DailyStats = make(map[string]*DailyRecord)
	}
	p.DailyStats[rec.Date] = rec
}

// Dates returns the stored record dates in chronological order.
func (p *UserProfile) Dates() []string {
	dates := make([]string, 0, len(p.DailyStats))
	for d := range p.DailyStats {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Clone returns a deep copy of the profile including all records.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.DailyStats = make(map[string]*DailyRecord, len(p.DailyStats))
	for d, r := range p.DailyStats {
		c.DailyStats[d] = r.Clone()
	}
	return &c
}
