package services

import (
	"errors"
	"sync"
	"time"

	"github.com/google/logger"

	"luckydraw/internal/models"
)

// Draw count bounds accepted by StartDraw.
const (
	MinDrawCount = 1
	MaxDrawCount = 100
)

var (
	// ErrCategoryNotFound is returned when a draw names a category that does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrNoEligibleItems is returned when every item of the category has already won.
	ErrNoEligibleItems = errors.New("no eligible participants left in this category")
	// ErrDrawInProgress is returned when a draw is requested while another one is spinning.
	ErrDrawInProgress = errors.New("a draw is already in progress")
)

// DrawState is the lifecycle state of the coordinator.
type DrawState string

const (
	DrawIdle       DrawState = "idle"
	DrawSpinning   DrawState = "spinning"
	DrawCommitting DrawState = "committing"
)

// Spin describes a started draw. The winners are already fixed; the client
// animates for Duration and the commit happens at EndsAt.
type Spin struct {
	CategoryID string        `json:"categoryId"`
	Winners    []models.Item `json:"winners"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"durationMs"`
	StartedAt  int64         `json:"startedAt"`
	EndsAt     int64         `json:"endsAt"`
}

// Completion is passed to completion listeners once per committed draw.
// Result is nil when the category was deleted while the wheel was spinning.
type Completion struct {
	CategoryID string             `json:"categoryId"`
	Winners    []models.Item      `json:"winners"`
	Result     *models.DrawResult `json:"result,omitempty"`
}

// DrawStatus is a point-in-time view of the coordinator.
type DrawStatus struct {
	State          DrawState     `json:"state"`
	CategoryID     string        `json:"categoryId,omitempty"`
	PendingWinners []models.Item `json:"pendingWinners"`
	EndsAt         int64         `json:"endsAt,omitempty"`
}

// DrawCoordinator runs the pre-select, spin, commit sequence for one store.
// Only one draw can be in flight at a time, and a started draw always commits.
type DrawCoordinator struct {
	mu        sync.Mutex
	store     *GameStore
	engine    *DrawEngine
	clock     Clock
	state     DrawState
	category  string
	pending   []models.Item
	endsAt    time.Time
	listeners []func(Completion)
}

// NewDrawCoordinator wires a coordinator to its store, engine and clock.
func NewDrawCoordinator(store *GameStore, engine *DrawEngine, clock Clock) *DrawCoordinator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &DrawCoordinator{
		store:  store,
		engine: engine,
		clock:  clock,
		state:  DrawIdle,
	}
}

// OnDrawComplete registers fn to be called after every commit.
func (c *DrawCoordinator) OnDrawComplete(fn func(Completion)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// ClampDrawCount keeps a requested winner count inside the accepted range.
func ClampDrawCount(n int) int {
	if n < MinDrawCount {
		return MinDrawCount
	}
	if n > MaxDrawCount {
		return MaxDrawCount
	}
	return n
}

// StartDraw pre-selects winners from the category's unwon items and
// schedules their commit after the configured spin duration. A nil error
// means the draw started.
func (c *DrawCoordinator) StartDraw(categoryID string, count int) (*Spin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != DrawIdle {
		return nil, ErrDrawInProgress
	}
	if _, ok := c.store.Category(categoryID); !ok {
		return nil, ErrCategoryNotFound
	}

	winners := c.engine.SelectWinners(c.store.AvailableItems(categoryID), ClampDrawCount(count))
	if len(winners) == 0 {
		return nil, ErrNoEligibleItems
	}

	duration := c.store.Settings().SpinDurationValue()
	now := c.clock.Now()

	c.state = DrawSpinning
	c.category = categoryID
	c.pending = winners
	c.endsAt = now.Add(duration)

	logger.Infof("Draw started: category=%s winners=%d duration=%s", categoryID, len(winners), duration)
	c.clock.AfterFunc(duration, c.commit)

	return &Spin{
		CategoryID: categoryID,
		Winners:    cloneItems(winners),
		Duration:   duration,
		DurationMS: duration.Milliseconds(),
		StartedAt:  millis(now),
		EndsAt:     millis(c.endsAt),
	}, nil
}

// commit runs once per started draw when the spin timer fires.
func (c *DrawCoordinator) commit() {
	c.mu.Lock()
	c.state = DrawCommitting
	categoryID := c.category
	winners := c.pending

	completion := Completion{CategoryID: categoryID, Winners: cloneItems(winners)}
	if result, ok := c.store.ConfirmWinners(categoryID, winners); ok {
		completion.Result = &result
	} else {
		logger.Warningf("Draw for category %s was not recorded: category no longer exists", categoryID)
	}

	c.pending = nil
	c.category = ""
	c.endsAt = time.Time{}
	c.state = DrawIdle
	listeners := make([]func(Completion), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	logger.Infof("Draw committed: category=%s winners=%d", categoryID, len(winners))
	for _, fn := range listeners {
		fn(completion)
	}
}

// Status reports the current state and, while spinning, the pending winners.
func (c *DrawCoordinator) Status() DrawStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := DrawStatus{State: c.state, CategoryID: c.category, PendingWinners: cloneItems(c.pending)}
	if !c.endsAt.IsZero() {
		st.EndsAt = millis(c.endsAt)
	}
	return st
}

// WhileIdle runs fn with no draw able to start or commit meanwhile. It returns
// ErrDrawInProgress without calling fn when a draw is pending.
func (c *DrawCoordinator) WhileIdle(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != DrawIdle {
		return ErrDrawInProgress
	}
	fn()
	return nil
}

// IsSpinning reports whether a draw is waiting to commit.
func (c *DrawCoordinator) IsSpinning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != DrawIdle
}

func cloneItems(items []models.Item) []models.Item {
	out := make([]models.Item, len(items))
	copy(out, items)
	return out
}
