package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

// sqlStore holds the queries shared by the SQLite and Postgres backends.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db      *sql.DB
	dialect string
}

func (s *sqlStore) q(query string) string {
	return rebind(s.dialect, query)
}

// Get loads a profile with all its daily records and log entries.
func (s *sqlStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	p := &models.UserProfile{UserID: userID, DailyStats: make(map[string]*models.DailyRecord)}
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT weight, height, age, activity_minutes, city FROM profiles WHERE user_id = ?`), userID,
	).Scan(&p.Weight, &p.Height, &p.Age, &p.ActivityMinutes, &p.City)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProfileNotFound
	}
	if err != nil {
		slog.Error("Store.Get: profile query failed", "dialect", s.dialect, "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}

	if err := s.loadRecords(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadFood(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadWorkouts(ctx, p); err != nil {
		return nil, err
	}
	slog.Debug("Store.Get: profile loaded", "dialect", s.dialect, "userID", userID, "days", len(p.DailyStats))
	return p, nil
}

func (s *sqlStore) loadRecords(ctx context.Context, p *models.UserProfile) error {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT date, logged_water, logged_calories, burned_calories,
		water_goal, calorie_goal, temperature FROM daily_records WHERE user_id = ?`), p.UserID)
	if err != nil {
		return fmt.Errorf("failed to query daily records for %s: %w", p.UserID, err)
	}
	defer rows.Close()
	for rows.Next() {
		r := &models.DailyRecord{}
		if err := rows.Scan(&r.Date, &r.LoggedWater, &r.LoggedCalories, &r.BurnedCalories,
			&r.WaterGoal, &r.CalorieGoal, &r.Temperature); err != nil {
			return fmt.Errorf("failed to scan daily record row: %w", err)
		}
		p.SetRecord(r)
	}
	return rows.Err()
}

func (s *sqlStore) loadFood(ctx context.Context, p *models.UserProfile) error {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, date, name, weight_g, calories, logged_at
		FROM food_entries WHERE user_id = ? ORDER BY seq`), p.UserID)
	if err != nil {
		return fmt.Errorf("failed to query food entries for %s: %w", p.UserID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var e models.FoodEntry
		var date string
		if err := rows.Scan(&e.ID, &date, &e.Name, &e.WeightG, &e.Calories, &e.Timestamp); err != nil {
			return fmt.Errorf("failed to scan food entry row: %w", err)
		}
		if rec, ok := p.Record(date); ok {
			rec.FoodLog = append(rec.FoodLog, e)
		}
	}
	return rows.Err()
}

func (s *sqlStore) loadWorkouts(ctx context.Context, p *models.UserProfile) error {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, date, type, duration_min, calories, water_ml, logged_at
		FROM workout_entries WHERE user_id = ? ORDER BY seq`), p.UserID)
	if err != nil {
		return fmt.Errorf("failed to query workout entries for %s: %w", p.UserID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var e models.WorkoutEntry
		var date string
		if err := rows.Scan(&e.ID, &date, &e.Type, &e.DurationMin, &e.Calories, &e.WaterML, &e.Timestamp); err != nil {
			return fmt.Errorf("failed to scan workout entry row: %w", err)
		}
		if rec, ok := p.Record(date); ok {
			rec.WorkoutLog = append(rec.WorkoutLog, e)
		}
	}
	return rows.Err()
}

// Put writes the profile and its records in one transaction. Log entries are
// append-only, so entries already stored are left as they are.
func (s *sqlStore) Put(ctx context.Context, p *models.UserProfile) error {
	if p == nil || p.UserID == "" {
		return models.ErrEmptyUserID
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO profiles (user_id, weight, height, age, activity_minutes, city, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET weight = excluded.weight, height = excluded.height, age = excluded.age,
		activity_minutes = excluded.activity_minutes, city = excluded.city, updated_at = excluded.updated_at`),
		p.UserID, p.Weight, p.Height, p.Age, p.ActivityMinutes, p.City, time.Now().UTC())
	if err != nil {
		slog.Error("Store.Put: profile upsert failed", "dialect", s.dialect, "userID", p.UserID, "error", err)
		return fmt.Errorf("failed to upsert profile %s: %w", p.UserID, err)
	}

	for _, date := range p.Dates() {
		rec := p.DailyStats[date]
		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO daily_records (user_id, date, logged_water, logged_calories,
			burned_calories, water_goal, calorie_goal, temperature) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, date) DO UPDATE SET logged_water = excluded.logged_water,
			logged_calories = excluded.logged_calories, burned_calories = excluded.burned_calories,
			water_goal = excluded.water_goal, calorie_goal = excluded.calorie_goal, temperature = excluded.temperature`),
			p.UserID, date, rec.LoggedWater, rec.LoggedCalories, rec.BurnedCalories, rec.WaterGoal, rec.CalorieGoal, rec.Temperature)
		if err != nil {
			return fmt.Errorf("failed to upsert daily record %s/%s: %w", p.UserID, date, err)
		}
		for _, e := range rec.FoodLog {
			_, err = tx.ExecContext(ctx, s.q(`INSERT INTO food_entries (id, user_id, date, name, weight_g, calories, logged_at)
				VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
				e.ID, p.UserID, date, e.Name, e.WeightG, e.Calories, e.Timestamp)
			if err != nil {
				return fmt.Errorf("failed to insert food entry %s: %w", e.ID, err)
			}
		}
		for _, e := range rec.WorkoutLog {
			_, err = tx.ExecContext(ctx, s.q(`INSERT INTO workout_entries (id, user_id, date, type, duration_min, calories, water_ml, logged_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
				e.ID, p.UserID, date, e.Type, e.DurationMin, e.Calories, e.WaterML, e.Timestamp)
			if err != nil {
				return fmt.Errorf("failed to insert workout entry %s: %w", e.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile %s: %w", p.UserID, err)
	}
	slog.Debug("Store.Put: profile stored", "dialect", s.dialect, "userID", p.UserID, "days", len(p.DailyStats))
	return nil
}

// Contains reports whether a profile row exists for userID.
func (s *sqlStore) Contains(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM profiles WHERE user_id = ?`), userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check profile %s: %w", userID, err)
	}
	return n > 0, nil
}

func (s *sqlStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(s.q(`INSERT INTO receipts (recipient, status, time) VALUES (?, ?, ?)`), r.To, r.Status, r.Time)
	if err != nil {
		slog.Error("Store.AddReceipt failed", "dialect", s.dialect, "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	return nil
}

func (s *sqlStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, time FROM receipts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.To, &r.Status, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	slog.Debug("Store.Close: closing database connection", "dialect", s.dialect)
	return s.db.Close()
}
