// Package report builds read-only progress and history views over stored profiles.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/tracker"
)

// History period bounds in days, inclusive.
const (
	MinHistoryDays = 1
	MaxHistoryDays = 30
)

// Reporter aggregates daily records for display.
type Reporter struct {
	tracker *tracker.Tracker
}

// NewReporter creates a Reporter that resolves "today" through tr.
func NewReporter(tr *tracker.Tracker) *Reporter {
	return &Reporter{tracker: tr}
}

// TodaySnapshot returns today's record, creating it when absent.
func (r *Reporter) TodaySnapshot(ctx context.Context, profile *models.UserProfile) *models.DailyRecord {
	rec, _ := r.tracker.GetOrCreateToday(ctx, profile)
	return rec
}

// ValidateDays checks a history period.
func ValidateDays(days int) error {
	if days < MinHistoryDays || days > MaxHistoryDays {
		return fmt.Errorf("%w: %d (allowed %d-%d)", models.ErrHistoryRange, days, MinHistoryDays, MaxHistoryDays)
	}
	return nil
}

// History returns the stored records of the last days calendar days, oldest first.
// Dates without a record are skipped, never synthesised.
func (r *Reporter) History(profile *models.UserProfile, days int) ([]*models.DailyRecord, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	var out []*models.DailyRecord
	for offset := days - 1; offset >= 0; offset-- {
		if rec, ok := profile.Record(r.tracker.DateOffset(offset)); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FormatProgress renders the progress view of one record.
func FormatProgress(rec *models.DailyRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Progress for %s (%.0f°C):\n", rec.Date, rec.Temperature)
	b.WriteString("Water:\n")
	fmt.Fprintf(&b, "- Drunk: %.0f ml of %.0f ml.\n", rec.LoggedWater, rec.WaterGoal)
	fmt.Fprintf(&b, "- Remaining: %.0f ml.\n\n", rec.RemainingWater())
	b.WriteString("Calories:\n")
	fmt.Fprintf(&b, "- Consumed: %.0f kcal of %.0f kcal.\n", rec.LoggedCalories, rec.CalorieGoal)
	fmt.Fprintf(&b, "- Burned: %.0f kcal.\n", rec.BurnedCalories)
	fmt.Fprintf(&b, "- Balance: %.0f kcal.", rec.CalorieBalance())
	writeEntries(&b, rec)
	return b.String()
}

// FormatHistory renders a sequence of records, one block per day.
func FormatHistory(days int, recs []*models.DailyRecord) string {
	if len(recs) == 0 {
		return fmt.Sprintf("📅 No records in the last %d day(s).", days)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 History for the last %d day(s):", days)
	for _, rec := range recs {
		fmt.Fprintf(&b, "\n\n🗓 %s\n", rec.Date)
		fmt.Fprintf(&b, "💧 Water: %.0f / %.0f ml (remaining %.0f ml)\n", rec.LoggedWater, rec.WaterGoal, rec.RemainingWater())
		fmt.Fprintf(&b, "🔥 Calories: consumed %.0f, burned %.0f, goal %.0f kcal", rec.LoggedCalories, rec.BurnedCalories, rec.CalorieGoal)
		writeEntries(&b, rec)
	}
	return b.String()
}

func writeEntries(b *strings.Builder, rec *models.DailyRecord) {
	if len(rec.FoodLog) > 0 {
		b.WriteString("\n🍽 Food:")
		for _, f := range rec.FoodLog {
			fmt.Fprintf(b, "\n  %s %s, %.0f g, %.1f kcal", f.Timestamp.Format("15:04"), f.Name, f.WeightG, f.Calories)
		}
	}
	if len(rec.WorkoutLog) > 0 {
		b.WriteString("\n🏃 Workouts:")
		for _, w := range rec.WorkoutLog {
			fmt.Fprintf(b, "\n  %s %s, %d min, %.0f kcal", w.Timestamp.Format("15:04"), w.Type, w.DurationMin, w.Calories)
		}
	}
}
