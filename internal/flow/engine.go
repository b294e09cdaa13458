// Package flow implements the conversation state machine that turns inbound
// chat messages into profile updates and replies.
//
// Each user has one session holding a state from a closed set and a small
// string buffer. Slash commands start flows; other text is dispatched through
// an explicit table keyed by the session state.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/BTreeMap/HydroPipe/internal/food"
	"github.com/BTreeMap/HydroPipe/internal/goals"
	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/report"
	"github.com/BTreeMap/HydroPipe/internal/store"
	"github.com/BTreeMap/HydroPipe/internal/tracker"
)

// Reply is what the engine sends back for one inbound message.
type Reply struct {
	Text         string
	Image        []byte // PNG, set only by /charts
	ImageCaption string
}

// FoodLookup resolves a product name to its calorie density.
type FoodLookup interface {
	Lookup(ctx context.Context, name string) (food.Product, error)
}

// ChartRenderer draws a day's progress as a PNG.
type ChartRenderer interface {
	Render(rec *models.DailyRecord) ([]byte, error)
}

// handler processes one message; text is the raw message for state handlers
// and the command arguments for command handlers.
type handler func(ctx context.Context, userID, text string) (Reply, error)

// Opts holds configuration options for the Engine.
type Opts struct {
	Catalog *goals.Catalog
	Food    FoodLookup
	Chart   ChartRenderer
}

// Option defines a configuration option for the Engine.
type Option func(*Opts)

// WithCatalog sets the workout catalogue.
func WithCatalog(c *goals.Catalog) Option {
	return func(o *Opts) { o.Catalog = c }
}

// WithFoodLookup sets the food collaborator. Without one /log_food apologises.
func WithFoodLookup(f FoodLookup) Option {
	return func(o *Opts) { o.Food = f }
}

// WithChartRenderer sets the chart collaborator. Without one /charts apologises.
func WithChartRenderer(c ChartRenderer) Option {
	return func(o *Opts) { o.Chart = c }
}

// Engine is the conversation state machine.
type Engine struct {
	profiles store.ProfileStore
	sessions store.SessionStore
	tracker  *tracker.Tracker
	reporter *report.Reporter
	catalog  *goals.Catalog
	food     FoodLookup
	chart    ChartRenderer

	locks    *userLocks
	states   map[models.StateType]handler
	commands map[string]handler
}

// NewEngine wires the state machine to its stores and collaborators.
func NewEngine(profiles store.ProfileStore, sessions store.SessionStore, tr *tracker.Tracker, opts ...Option) *Engine {
	cfg := Opts{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Catalog == nil {
		cfg.Catalog = goals.DefaultCatalog()
	}
	e := &Engine{
		profiles: profiles,
		sessions: sessions,
		tracker:  tr,
		reporter: report.NewReporter(tr),
		catalog:  cfg.Catalog,
		food:     cfg.Food,
		chart:    cfg.Chart,
		locks:    newUserLocks(),
	}

	e.states = map[models.StateType]handler{
		models.StateProfileWeight:          e.handleProfileWeight,
		models.StateProfileHeight:          e.handleProfileHeight,
		models.StateProfileAge:             e.handleProfileAge,
		models.StateProfileActivity:        e.handleProfileActivity,
		models.StateProfileCity:            e.handleProfileCity,
		models.StateWaterWaiting:           e.handleWaterAmount,
		models.StateFoodWaitingName:        e.handleFoodName,
		models.StateFoodWaitingWeight:      e.handleFoodWeight,
		models.StateWorkoutWaitingType:     e.handleWorkoutType,
		models.StateWorkoutWaitingDuration: e.handleWorkoutDuration,
		models.StateWorkoutCommit:          e.commitWorkout,
		models.StateHistoryWaiting:         e.handleHistoryDays,
	}
	e.commands = map[string]handler{
		CommandStart:         e.cmdStart,
		CommandHelp:          e.cmdHelp,
		CommandSetProfile:    e.cmdSetProfile,
		CommandLogWater:      e.cmdLogWater,
		CommandLogFood:       e.cmdLogFood,
		CommandLogWorkout:    e.cmdLogWorkout,
		CommandCheckProgress: e.cmdCheckProgress,
		CommandCharts:        e.cmdCharts,
		CommandHistory:       e.cmdHistory,
	}
	return e
}

// Handle processes one inbound message from userID and returns the reply.
// Messages of one user are handled one at a time. Internal failures are
// logged, the session is reset to Idle and a generic apology is returned;
// the returned error is only non-nil for an empty userID.
func (e *Engine) Handle(ctx context.Context, userID, text string) (reply Reply, err error) {
	if userID == "" {
		return Reply{}, models.ErrEmptyUserID
	}
	unlock := e.locks.lock(userID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine.Handle: panic recovered", "userID", userID, "panic", r, "stack", string(debug.Stack()))
			reply = e.fail(ctx, userID, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	reply, herr := e.dispatch(ctx, userID, text)
	if herr != nil {
		return e.fail(ctx, userID, herr), nil
	}
	return reply, nil
}

func (e *Engine) dispatch(ctx context.Context, userID, text string) (Reply, error) {
	state, err := e.sessions.GetState(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("load session state: %w", err)
	}
	text = strings.TrimSpace(text)

	if cmd, args, ok := ParseCommand(text); ok {
		if state != models.StateIdle {
			slog.Info("Engine.dispatch: flow abandoned by command", "userID", userID, "state", state, "command", cmd)
			if err := e.sessions.Clear(ctx, userID); err != nil {
				return Reply{}, fmt.Errorf("clear session: %w", err)
			}
		}
		if cmd == CommandCancel {
			if state == models.StateIdle {
				return Reply{Text: msgNothingToCancel}, nil
			}
			return Reply{Text: msgCancelled}, nil
		}
		h, known := e.commands[cmd]
		if !known {
			return Reply{Text: msgUnknownCommand}, nil
		}
		if !profileOptional(cmd) {
			if reply, blocked, err := e.guard(ctx, userID); blocked || err != nil {
				return reply, err
			}
		}
		slog.Debug("Engine.dispatch: command", "userID", userID, "command", cmd)
		return h(ctx, userID, args)
	}

	if state == models.StateIdle {
		if reply, blocked, err := e.guard(ctx, userID); blocked || err != nil {
			return reply, err
		}
		return Reply{Text: msgIdleHint}, nil
	}

	h, ok := e.states[state]
	if !ok {
		return Reply{}, fmt.Errorf("%w: unknown state %q", models.ErrMalformedBuffer, state)
	}
	if state.Flow() != models.FlowTypeProfileSetup {
		if reply, blocked, err := e.guard(ctx, userID); blocked || err != nil {
			return reply, err
		}
	}
	slog.Debug("Engine.dispatch: state handler", "userID", userID, "state", state)
	return h(ctx, userID, text)
}

// guard blocks users without a stored profile.
func (e *Engine) guard(ctx context.Context, userID string) (Reply, bool, error) {
	ok, err := e.profiles.Contains(ctx, userID)
	if err != nil {
		return Reply{}, true, fmt.Errorf("check profile: %w", err)
	}
	if !ok {
		return Reply{Text: msgNeedProfile}, true, nil
	}
	return Reply{}, false, nil
}

// fail resets the session and returns the generic apology.
func (e *Engine) fail(ctx context.Context, userID string, err error) Reply {
	slog.Error("Engine.Handle: internal failure, session reset", "userID", userID, "error", err)
	if cerr := e.sessions.Clear(ctx, userID); cerr != nil {
		slog.Error("Engine.Handle: failed to clear session", "userID", userID, "error", cerr)
	}
	return Reply{Text: msgInternalError}
}

// setState moves the session to state.
func (e *Engine) setState(ctx context.Context, userID string, state models.StateType) error {
	if err := e.sessions.SetState(ctx, userID, state); err != nil {
		return fmt.Errorf("set state %s: %w", state, err)
	}
	return nil
}

// finish clears the session after a completed flow and returns reply.
func (e *Engine) finish(ctx context.Context, userID string, reply Reply) (Reply, error) {
	if err := e.sessions.Clear(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("clear session: %w", err)
	}
	return reply, nil
}

// loadProfile fetches the user's profile, mapping a missing one to an error
// because every caller runs behind the guard.
func (e *Engine) loadProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := e.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrProfileNotFound) {
			return nil, fmt.Errorf("profile vanished during flow: %w", err)
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// withToday loads the profile, materialises today's record, applies fn to it
// and stores the profile.
func (e *Engine) withToday(ctx context.Context, userID string, fn func(p *models.UserProfile, rec *models.DailyRecord) error) error {
	p, err := e.loadProfile(ctx, userID)
	if err != nil {
		return err
	}
	rec, _ := e.tracker.GetOrCreateToday(ctx, p)
	if err := fn(p, rec); err != nil {
		return err
	}
	if err := e.profiles.Put(ctx, p); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	return nil
}
