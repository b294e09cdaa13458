package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/HydroPipe/internal/food"
	"github.com/BTreeMap/HydroPipe/internal/models"
)

func (e *Engine) cmdLogFood(ctx context.Context, userID, args string) (Reply, error) {
	if args == "" {
		if err := e.setState(ctx, userID, models.StateFoodWaitingName); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgAskFood}, nil
	}
	return e.lookupFood(ctx, userID, args)
}

func (e *Engine) handleFoodName(ctx context.Context, userID, text string) (Reply, error) {
	if text == "" {
		return Reply{Text: msgAskFood}, nil
	}
	return e.lookupFood(ctx, userID, text)
}

// lookupFood resolves the product and asks for the eaten weight. Lookup
// failures end the flow with an apology.
func (e *Engine) lookupFood(ctx context.Context, userID, name string) (Reply, error) {
	if e.food == nil {
		return e.finish(ctx, userID, Reply{Text: msgFoodUnavailable})
	}
	product, err := e.food.Lookup(ctx, name)
	if err != nil {
		slog.Info("Engine.lookupFood: lookup failed", "userID", userID, "name", name, "error", err)
		return e.finish(ctx, userID, Reply{Text: foodFailureText(err)})
	}

	if err := e.sessions.UpdateBuffer(ctx, userID, map[models.DataKey]string{
		models.DataKeyFoodName:       product.Name,
		models.DataKeyCaloriesPer100: formatFloat(product.CaloriesPer100g),
	}); err != nil {
		return Reply{}, fmt.Errorf("update buffer: %w", err)
	}
	if err := e.setState(ctx, userID, models.StateFoodWaitingWeight); err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf(msgFoodFoundFmt, product.Name, product.CaloriesPer100g)}, nil
}

func foodFailureText(err error) string {
	var lerr *food.LookupError
	if errors.As(err, &lerr) && lerr.Suggestion != "" {
		return fmt.Sprintf(msgFoodSuggestFmt, lerr.Name, lerr.Suggestion)
	}
	if errors.Is(err, food.ErrNotFound) {
		return msgFoodNotFound
	}
	return msgFoodUnavailable
}

func (e *Engine) handleFoodWeight(ctx context.Context, userID, text string) (Reply, error) {
	grams, ok := parsePositiveFloat(text, maxFoodGrams)
	if !ok {
		return Reply{Text: msgBadGrams}, nil
	}
	return e.commitFood(ctx, userID, grams)
}

func (e *Engine) commitFood(ctx context.Context, userID string, grams float64) (Reply, error) {
	buf, err := e.sessions.GetBuffer(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("load buffer: %w", err)
	}
	name := buf[models.DataKeyFoodName]
	if name == "" {
		return Reply{}, fmt.Errorf("%w: missing %s", models.ErrMalformedBuffer, models.DataKeyFoodName)
	}
	per100, err := bufferFloat(buf, models.DataKeyCaloriesPer100)
	if err != nil {
		return Reply{}, err
	}
	calories := per100 * grams / 100

	err = e.withToday(ctx, userID, func(p *models.UserProfile, rec *models.DailyRecord) error {
		if err := rec.AddFood(e.tracker.NewFoodEntry(name, grams, calories)); err != nil {
			return fmt.Errorf("add food: %w", err)
		}
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	slog.Info("Engine.commitFood: food logged", "userID", userID, "name", name, "grams", grams, "calories", calories)
	return e.finish(ctx, userID, Reply{Text: fmt.Sprintf(msgFoodLoggedFmt, name, grams, calories)})
}
