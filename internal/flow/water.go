package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

// cmdLogWater handles "/log_water [ml]". An amount that does not parse still
// enters the waiting state so the next message can correct it.
func (e *Engine) cmdLogWater(ctx context.Context, userID, args string) (Reply, error) {
	if args == "" {
		if err := e.setState(ctx, userID, models.StateWaterWaiting); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgAskWater}, nil
	}
	ml, ok := parsePositiveFloat(args, maxWaterML)
	if !ok {
		if err := e.setState(ctx, userID, models.StateWaterWaiting); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgBadWater}, nil
	}
	return e.commitWater(ctx, userID, ml)
}

func (e *Engine) handleWaterAmount(ctx context.Context, userID, text string) (Reply, error) {
	ml, ok := parsePositiveFloat(text, maxWaterML)
	if !ok {
		return Reply{Text: msgBadWater}, nil
	}
	return e.commitWater(ctx, userID, ml)
}

// commitWater is shared by the inline and prompted paths.
func (e *Engine) commitWater(ctx context.Context, userID string, ml float64) (Reply, error) {
	var remaining float64
	err := e.withToday(ctx, userID, func(p *models.UserProfile, rec *models.DailyRecord) error {
		if err := rec.AddWater(ml); err != nil {
			return fmt.Errorf("add water: %w", err)
		}
		remaining = rec.RemainingWater()
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	slog.Info("Engine.commitWater: water logged", "userID", userID, "ml", ml, "remaining", remaining)
	return e.finish(ctx, userID, Reply{Text: fmt.Sprintf(msgWaterLogged, ml, remaining)})
}
