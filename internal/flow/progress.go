package flow

import (
	"context"
	"fmt"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/report"
)

func (e *Engine) cmdHistory(ctx context.Context, userID, args string) (Reply, error) {
	if args == "" {
		if err := e.setState(ctx, userID, models.StateHistoryWaiting); err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf(msgAskHistoryFmt, report.MinHistoryDays, report.MaxHistoryDays)}, nil
	}
	return e.handleHistoryDays(ctx, userID, args)
}

// handleHistoryDays serves both "/history N" and the prompted answer.
func (e *Engine) handleHistoryDays(ctx context.Context, userID, text string) (Reply, error) {
	days, ok := parseInt(text, report.MinHistoryDays, report.MaxHistoryDays)
	if !ok || report.ValidateDays(days) != nil {
		if err := e.setState(ctx, userID, models.StateHistoryWaiting); err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf(msgBadHistoryFmt, report.MinHistoryDays, report.MaxHistoryDays)}, nil
	}
	p, err := e.loadProfile(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	recs, err := e.reporter.History(p, days)
	if err != nil {
		return Reply{}, err
	}
	return e.finish(ctx, userID, Reply{Text: report.FormatHistory(days, recs)})
}

// cmdCheckProgress refreshes today's goals against the current weather and
// reports progress, prefixed by a notice when the temperature moved a lot.
func (e *Engine) cmdCheckProgress(ctx context.Context, userID, args string) (Reply, error) {
	p, err := e.loadProfile(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	notice := e.tracker.RefreshGoalsIfNeeded(ctx, p)
	rec := e.reporter.TodaySnapshot(ctx, p)
	if err := e.profiles.Put(ctx, p); err != nil {
		return Reply{}, fmt.Errorf("store profile: %w", err)
	}
	text := report.FormatProgress(rec)
	if notice != "" {
		text = notice + "\n\n" + text
	}
	return Reply{Text: text}, nil
}

func (e *Engine) cmdCharts(ctx context.Context, userID, args string) (Reply, error) {
	if e.chart == nil {
		return Reply{Text: msgChartsUnavailable}, nil
	}
	p, err := e.loadProfile(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	rec, created := e.tracker.GetOrCreateToday(ctx, p)
	if created {
		if err := e.profiles.Put(ctx, p); err != nil {
			return Reply{}, fmt.Errorf("store profile: %w", err)
		}
	}
	img, err := e.chart.Render(rec)
	if err != nil {
		return Reply{}, fmt.Errorf("render chart: %w", err)
	}
	caption := fmt.Sprintf(msgChartCaptionFmt, rec.Date)
	return Reply{Text: caption + "\n\n" + report.FormatProgress(rec), Image: img, ImageCaption: caption}, nil
}
