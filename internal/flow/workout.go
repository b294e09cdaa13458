package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/HydroPipe/internal/goals"
	"github.com/BTreeMap/HydroPipe/internal/models"
)

// cmdLogWorkout handles "/log_workout [type] [minutes]", skipping to the
// first state whose data is still missing.
func (e *Engine) cmdLogWorkout(ctx context.Context, userID, args string) (Reply, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		if err := e.setState(ctx, userID, models.StateWorkoutWaitingType); err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf(msgAskWorkoutFmt, e.kindList())}, nil
	}

	kind, err := e.catalog.Resolve(fields[0])
	if err != nil {
		if err := e.setState(ctx, userID, models.StateWorkoutWaitingType); err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf(msgUnknownWorkoutFmt, e.kindList())}, nil
	}
	if err := e.sessions.UpdateBuffer(ctx, userID, map[models.DataKey]string{models.DataKeyWorkoutType: kind}); err != nil {
		return Reply{}, fmt.Errorf("update buffer: %w", err)
	}
	if len(fields) < 2 {
		if err := e.setState(ctx, userID, models.StateWorkoutWaitingDuration); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgAskDuration}, nil
	}

	minutes, ok := parseInt(fields[1], 1, maxMinutes)
	if !ok {
		if err := e.setState(ctx, userID, models.StateWorkoutWaitingDuration); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgBadDuration}, nil
	}
	return e.enterWorkoutCommit(ctx, userID, minutes)
}

func (e *Engine) handleWorkoutType(ctx context.Context, userID, text string) (Reply, error) {
	kind, err := e.catalog.Resolve(text)
	if err != nil {
		return Reply{Text: fmt.Sprintf(msgUnknownWorkoutFmt, e.kindList())}, nil
	}
	if err := e.sessions.UpdateBuffer(ctx, userID, map[models.DataKey]string{models.DataKeyWorkoutType: kind}); err != nil {
		return Reply{}, fmt.Errorf("update buffer: %w", err)
	}
	if err := e.setState(ctx, userID, models.StateWorkoutWaitingDuration); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgAskDuration}, nil
}

func (e *Engine) handleWorkoutDuration(ctx context.Context, userID, text string) (Reply, error) {
	minutes, ok := parseInt(text, 1, maxMinutes)
	if !ok {
		return Reply{Text: msgBadDuration}, nil
	}
	return e.enterWorkoutCommit(ctx, userID, minutes)
}

// enterWorkoutCommit records the duration, moves to the commit state and runs it.
func (e *Engine) enterWorkoutCommit(ctx context.Context, userID string, minutes int) (Reply, error) {
	if err := e.sessions.UpdateBuffer(ctx, userID, map[models.DataKey]string{
		models.DataKeyWorkoutDuration: strconv.Itoa(minutes),
	}); err != nil {
		return Reply{}, fmt.Errorf("update buffer: %w", err)
	}
	if err := e.setState(ctx, userID, models.StateWorkoutCommit); err != nil {
		return Reply{}, err
	}
	return e.commitWorkout(ctx, userID, "")
}

// commitWorkout is the only place workout arithmetic happens. It reads
// everything from the buffer, so it also serves a session left in the commit state.
func (e *Engine) commitWorkout(ctx context.Context, userID, _ string) (Reply, error) {
	buf, err := e.sessions.GetBuffer(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("load buffer: %w", err)
	}
	kind := buf[models.DataKeyWorkoutType]
	minutes, err := bufferInt(buf, models.DataKeyWorkoutDuration)
	if err != nil {
		return Reply{}, err
	}
	burned, err := e.catalog.Burned(kind, minutes)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", models.ErrMalformedBuffer, err)
	}
	water := goals.WorkoutWater(minutes)

	err = e.withToday(ctx, userID, func(p *models.UserProfile, rec *models.DailyRecord) error {
		if err := rec.AddWorkout(e.tracker.NewWorkoutEntry(kind, minutes, burned, water)); err != nil {
			return fmt.Errorf("add workout: %w", err)
		}
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	slog.Info("Engine.commitWorkout: workout logged", "userID", userID, "type", kind, "minutes", minutes, "burned", burned)
	return e.finish(ctx, userID, Reply{Text: fmt.Sprintf(msgWorkoutLoggedFmt, capitalize(kind), minutes, burned, water)})
}

func (e *Engine) kindList() string {
	return strings.Join(e.catalog.Kinds(), ", ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
