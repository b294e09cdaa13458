package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestReceiptFields(t *testing.T) {
	r := Receipt{To: "+123", Status: MessageStatusSent, Time: 123456}
	if r.To != "+123" || r.Status != "sent" || r.Time != 123456 {
		t.Error("Receipt struct fields not set correctly")
	}
}

func TestStateFlow(t *testing.T) {
	tests := []struct {
		state StateType
		want  FlowType
	}{
		{"", FlowTypeIdle},
		{StateIdle, FlowTypeIdle},
		{StateProfileCity, FlowTypeProfileSetup},
		{StateWaterWaiting, FlowTypeWaterLogging},
		{StateFoodWaitingWeight, FlowTypeFoodLogging},
		{StateWorkoutCommit, FlowTypeWorkoutLogging},
		{StateHistoryWaiting, FlowTypeHistoryPeriod},
	}
	for _, tt := range tests {
		if got := tt.state.Flow(); got != tt.want {
			t.Errorf("%q.Flow() = %q, want %q", tt.state, got, tt.want)
		}
	}
	if StateType("ProfileSetup.bogus").IsValid() {
		t.Error("unexpected valid state")
	}
	for _, s := range AllStates {
		if !s.IsValid() {
			t.Errorf("state %q should be valid", s)
		}
	}
}

func TestDailyRecordRejectsOverflow(t *testing.T) {
	r := &DailyRecord{Date: "2026-10-19"}
	if err := r.AddWater(math.MaxFloat64); err != nil {
		t.Fatalf("AddWater: %v", err)
	}
	if err := r.AddWater(math.MaxFloat64); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("overflowing AddWater = %v, want ErrInvalidAmount", err)
	}
	if math.IsInf(r.LoggedWater, 0) {
		t.Error("LoggedWater overflowed")
	}

	now := time.Now()
	if err := r.AddFood(FoodEntry{Name: "x", WeightG: 100, Calories: math.Inf(1), Timestamp: now}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("infinite calories = %v, want ErrInvalidAmount", err)
	}
	if err := r.AddWorkout(WorkoutEntry{Type: "run", DurationMin: 10, Calories: math.NaN(), Timestamp: now}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("NaN calories = %v, want ErrInvalidAmount", err)
	}
	if len(r.FoodLog) != 0 || len(r.WorkoutLog) != 0 || r.LoggedCalories != 0 || r.BurnedCalories != 0 {
		t.Errorf("record changed by rejected entries: %+v", r)
	}
}

func TestDailyRecordCounters(t *testing.T) {
	r := &DailyRecord{Date: "2026-10-19", WaterGoal: 2000}
	if err := r.AddWater(250); err != nil {
		t.Fatalf("AddWater: %v", err)
	}
	if err := r.AddWater(0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero water, got %v", err)
	}
	if err := r.AddWater(-10); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative water, got %v", err)
	}
	for _, bad := range []float64{math.Inf(1), math.NaN()} {
		if err := r.AddWater(bad); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("AddWater(%v) = %v, want ErrInvalidAmount", bad, err)
		}
	}
	if r.LoggedWater != 250 {
		t.Errorf("LoggedWater = %v, want 250", r.LoggedWater)
	}
	if got := r.RemainingWater(); got != 1750 {
		t.Errorf("RemainingWater = %v, want 1750", got)
	}
	r.LoggedWater = 2500
	if got := r.RemainingWater(); got != 0 {
		t.Errorf("RemainingWater over goal = %v, want 0", got)
	}

	now := time.Now()
	if err := r.AddFood(FoodEntry{Name: "banana", WeightG: 120, Calories: 107, Timestamp: now}); err != nil {
		t.Fatalf("AddFood: %v", err)
	}
	if err := r.AddWorkout(WorkoutEntry{Type: "run", DurationMin: 30, Calories: 300, Timestamp: now}); err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}
	if r.CalorieBalance() != 107-300 {
		t.Errorf("CalorieBalance = %v", r.CalorieBalance())
	}
	if len(r.FoodLog) != 1 || len(r.WorkoutLog) != 1 {
		t.Errorf("logs not appended: food=%d workout=%d", len(r.FoodLog), len(r.WorkoutLog))
	}
}

func TestProfileCloneIsDeep(t *testing.T) {
	p := &UserProfile{UserID: "u1", Weight: 70, Height: 175, Age: 30, City: "Berlin"}
	p.SetRecord(&DailyRecord{Date: "2026-10-19", FoodLog: []FoodEntry{{Name: "apple"}}})

	c := p.Clone()
	rec, _ := c.Record("2026-10-19")
	rec.LoggedWater = 500
	rec.FoodLog[0].Name = "pear"

	orig, _ := p.Record("2026-10-19")
	if orig.LoggedWater != 0 || orig.FoodLog[0].Name != "apple" {
		t.Error("mutating the clone changed the original")
	}
}

func TestProfileValidateAndDates(t *testing.T) {
	p := &UserProfile{UserID: "u1", Weight: 70, Height: 175, Age: 30, ActivityMinutes: 0, City: "Oslo"}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := *p
	bad.Weight = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("expected ErrInvalidProfile, got %v", err)
	}

	p.SetRecord(&DailyRecord{Date: "2026-10-19"})
	p.SetRecord(&DailyRecord{Date: "2026-10-01"})
	p.SetRecord(&DailyRecord{Date: "2026-10-10"})
	dates := p.Dates()
	want := []string{"2026-10-01", "2026-10-10", "2026-10-19"}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("Dates() = %v, want %v", dates, want)
		}
	}
}
