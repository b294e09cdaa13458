package api

import (
	"context"
	"sync"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/report"
	"github.com/BTreeMap/HydroPipe/internal/tracker"
	"golang.org/x/sync/singleflight"
)

// snapshotCache holds today's computed record for users whose stored profile
// has no record for today yet. Read endpoints never persist, so without it
// every request on such a day would query the weather service again.
type snapshotCache struct {
	tracker  *tracker.Tracker
	reporter *report.Reporter

	mu      sync.Mutex
	entries map[string]*models.DailyRecord
	group   singleflight.Group
}

func newSnapshotCache(tr *tracker.Tracker, rep *report.Reporter) *snapshotCache {
	return &snapshotCache{tracker: tr, reporter: rep, entries: make(map[string]*models.DailyRecord)}
}

// today returns a copy of today's record for p. A stored record always wins;
// otherwise one snapshot per user and date is computed and reused.
func (c *snapshotCache) today(ctx context.Context, p *models.UserProfile) *models.DailyRecord {
	date := c.tracker.Today()
	if rec, ok := p.Record(date); ok {
		return rec
	}
	if rec := c.get(p.UserID, date); rec != nil {
		return rec.Clone()
	}
	v, _, _ := c.group.Do(p.UserID+"|"+date, func() (interface{}, error) {
		if rec := c.get(p.UserID, date); rec != nil {
			return rec, nil
		}
		// Shared by every waiting request, so one client disconnecting must
		// not turn the lookup into a cached fallback temperature.
		rec := c.reporter.TodaySnapshot(context.WithoutCancel(ctx), p.Clone())
		c.put(p.UserID, rec)
		return rec, nil
	})
	return v.(*models.DailyRecord).Clone()
}

func (c *snapshotCache) get(userID, date string) *models.DailyRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.entries[userID]; ok && rec.Date == date {
		return rec
	}
	return nil
}

func (c *snapshotCache) put(userID string, rec *models.DailyRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = rec
}
