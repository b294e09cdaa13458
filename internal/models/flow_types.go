// Package models defines flow type definitions to avoid circular imports.
package models

import "strings"

// FlowType represents one multi-turn interaction
type FlowType string

// StateType represents a specific state within a flow, written "Flow.state"
type StateType string

// DataKey represents a key in the transient session buffer
type DataKey string

// Flow type constants.
const (
	FlowTypeIdle           FlowType = "Idle"
	FlowTypeProfileSetup   FlowType = "ProfileSetup"
	FlowTypeWaterLogging   FlowType = "WaterLogging"
	FlowTypeFoodLogging    FlowType = "FoodLogging"
	FlowTypeWorkoutLogging FlowType = "WorkoutLogging"
	FlowTypeHistoryPeriod  FlowType = "HistoryPeriod"
)

// State constants. StateIdle is also what an empty session reports.
const (
	StateIdle StateType = "Idle"

	StateProfileWeight   StateType = "ProfileSetup.weight"
	StateProfileHeight   StateType = "ProfileSetup.height"
	StateProfileAge      StateType = "ProfileSetup.age"
	StateProfileActivity StateType = "ProfileSetup.activity"
	StateProfileCity     StateType = "ProfileSetup.city"

	StateWaterWaiting StateType = "WaterLogging.waiting"

	StateFoodWaitingName   StateType = "FoodLogging.waiting_for_name"
	StateFoodWaitingWeight StateType = "FoodLogging.waiting_for_weight"

	StateWorkoutWaitingType     StateType = "WorkoutLogging.waiting_for_type"
	StateWorkoutWaitingDuration StateType = "WorkoutLogging.waiting_for_duration"
	StateWorkoutCommit          StateType = "WorkoutLogging.commit"

	StateHistoryWaiting StateType = "HistoryPeriod.waiting"
)

// AllStates lists every state of the closed set, Idle first.
var AllStates = []StateType{
	StateIdle,
	StateProfileWeight, StateProfileHeight, StateProfileAge, StateProfileActivity, StateProfileCity,
	StateWaterWaiting,
	StateFoodWaitingName, StateFoodWaitingWeight,
	StateWorkoutWaitingType, StateWorkoutWaitingDuration, StateWorkoutCommit,
	StateHistoryWaiting,
}

// Flow returns the flow a state belongs to.
func (s StateType) Flow() FlowType {
	if s == "" {
		return FlowTypeIdle
	}
	flow, _, _ := strings.Cut(string(s), ".")
	return FlowType(flow)
}

// IsValid reports whether s is a member of the closed state set.
func (s StateType) IsValid() bool {
	for _, st := range AllStates {
		if st == s {
			return true
		}
	}
	return false
}

// Data key constants for the session buffer.
const (
	DataKeyWeight          DataKey = "weight"
	DataKeyHeight          DataKey = "height"
	DataKeyAge             DataKey = "age"
	DataKeyActivity        DataKey = "activity"
	DataKeyFoodName        DataKey = "food_name"
	DataKeyCaloriesPer100  DataKey = "calories_per_100"
	DataKeyWorkoutType     DataKey = "workout_type"
	DataKeyWorkoutDuration DataKey = "workout_duration"
)
