// Package goals computes daily water and calorie targets.
//
// Everything here is pure and deterministic; callers may invoke it any number of times.
package goals

import "math"

// Calculation constants.
const (
	// WaterPerKg is the base water need in ml per kg of body weight.
	WaterPerKg = 30
	// WaterPerActivity is added for every full 30 minutes of daily activity.
	WaterPerActivity = 500
	// WaterHotBonus is added when the temperature is above HotTemperature.
	WaterHotBonus = 500
	// WaterPerWorkout is recommended for every full 30 minutes of a workout.
	WaterPerWorkout = 200
	// HotTemperature is the threshold in °C above which WaterHotBonus applies.
	HotTemperature = 25.0
	// FallbackTemperature is used when the weather lookup fails.
	FallbackTemperature = 20.0
	// RefreshThreshold is the temperature change in °C that produces a goal notice.
	RefreshThreshold = 5.0
)

// WaterGoal returns the daily water target in ml.
func WaterGoal(weight float64, activityMinutes int, temperature float64) float64 {
	goal := weight*WaterPerKg + float64(activityMinutes/30)*WaterPerActivity
	if temperature > HotTemperature {
		goal += WaterHotBonus
	}
	return goal
}

// CalorieGoal returns the daily calorie target in kcal. It does not depend on temperature.
func CalorieGoal(weight, height float64, age, activityMinutes int) float64 {
	bmr := 10*weight + 6.25*height - 5*float64(age)
	return bmr + float64(activityMinutes)*4
}

// WorkoutWater returns the extra water in ml recommended after a workout.
func WorkoutWater(durationMin int) float64 {
	return float64(durationMin/30) * WaterPerWorkout
}

// SignificantChange reports whether the temperature moved by more than RefreshThreshold.
func SignificantChange(oldTemp, newTemp float64) bool {
	return math.Abs(newTemp-oldTemp) > RefreshThreshold
}
