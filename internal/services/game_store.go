package services

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/logger"
	"github.com/google/uuid"

	"luckydraw/internal/models"
)

// DefaultCategoryName is the name of the category created for an empty session.
const DefaultCategoryName = "默认分组"

// GameStore holds the participant pool, the draw history and the settings of
// one session. Every read returns a copy; ids that do not exist make updates
// and deletes no-ops.
type GameStore struct {
	mu                sync.RWMutex
	clock             Clock
	categories        []*models.Category
	currentCategoryID string
	history           History
	settings          models.GlobalSettings
}

// NewGameStore creates an empty store with default settings.
func NewGameStore(clock Clock) *GameStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &GameStore{
		clock:      clock,
		categories: make([]*models.Category, 0),
		settings:   models.DefaultSettings(),
	}
}

func newID() string {
	return uuid.NewString()
}

func (s *GameStore) now() int64 {
	return millis(s.clock.Now())
}

// find must be called with s.mu held.
func (s *GameStore) find(id string) (int, *models.Category) {
	for i, c := range s.categories {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

// Categories returns all categories in creation order.
func (s *GameStore) Categories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, len(s.categories))
	for i, c := range s.categories {
		out[i] = c.Clone()
	}
	return out
}

// Category returns the category with the given id.
func (s *GameStore) Category(id string) (models.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, c := s.find(id)
	if c == nil {
		return models.Category{}, false
	}
	return c.Clone(), true
}

// CurrentCategoryID returns the selected category id, or "" when none is selected.
func (s *GameStore) CurrentCategoryID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentCategoryID
}

// CurrentCategory returns the selected category.
func (s *GameStore) CurrentCategory() (models.Category, bool) {
	return s.Category(s.CurrentCategoryID())
}

// SetCurrentCategory selects a category. An unknown id clears the selection.
func (s *GameStore) SetCurrentCategory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, c := s.find(id); c == nil {
		s.currentCategoryID = ""
		return
	}
	s.currentCategoryID = id
}

// AvailableItems returns the items of a category that can still win.
func (s *GameStore) AvailableItems(categoryID string) []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, c := s.find(categoryID)
	if c == nil {
		return []models.Item{}
	}
	return c.AvailableItems()
}

// WonItems returns the items of a category that have won.
func (s *GameStore) WonItems(categoryID string) []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, c := s.find(categoryID)
	if c == nil {
		return []models.Item{}
	}
	return c.WonItems()
}

// Stats returns the pool counts of a category; an unknown id yields zeros.
func (s *GameStore) Stats(categoryID string) models.CategoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, c := s.find(categoryID)
	if c == nil {
		return models.CategoryStats{}
	}
	return c.Stats()
}

// CreateCategory appends a new empty category.
func (s *GameStore) CreateCategory(name string, color models.ThemeColor) models.Category {
	if !color.Valid() {
		color = models.DefaultThemeColor
	}
	now := s.now()
	c := &models.Category{
		ID:         newID(),
		Name:       strings.TrimSpace(name),
		ThemeColor: color,
		Items:      make([]models.Item, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, c)
	return c.Clone()
}

// UpdateCategory renames or recolors a category.
func (s *GameStore) UpdateCategory(id string, upd models.CategoryUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.find(id)
	if c == nil {
		return
	}
	if upd.Name != nil {
		c.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.ThemeColor != nil && upd.ThemeColor.Valid() {
		c.ThemeColor = *upd.ThemeColor
	}
	c.UpdatedAt = s.now()
}

// DeleteCategory removes a category and its items. History entries that
// reference it are kept.
func (s *GameStore) DeleteCategory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, c := s.find(id)
	if c == nil {
		return
	}
	s.categories = append(s.categories[:i], s.categories[i+1:]...)
	if s.currentCategoryID == id {
		s.currentCategoryID = s.firstCategoryID()
	}
}

// firstCategoryID must be called with s.mu held.
func (s *GameStore) firstCategoryID() string {
	if len(s.categories) == 0 {
		return ""
	}
	return s.categories[0].ID
}

// AddItem adds a participant. Blank names and unknown categories are rejected.
func (s *GameStore) AddItem(categoryID, name string) (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.find(categoryID)
	if c == nil {
		return models.Item{}, false
	}
	return s.addItemLocked(c, name)
}

func (s *GameStore) addItemLocked(c *models.Category, name string) (models.Item, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Item{}, false
	}
	now := s.now()
	it := models.Item{ID: newID(), Name: name, CreatedAt: now}
	c.Items = append(c.Items, it)
	c.UpdatedAt = now
	return it, true
}

// AddBulkItems adds every non-blank name and returns the items created.
func (s *GameStore) AddBulkItems(categoryID string, names []string) []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]models.Item, 0, len(names))
	_, c := s.find(categoryID)
	if c == nil {
		return added
	}
	for _, name := range names {
		if it, ok := s.addItemLocked(c, name); ok {
			added = append(added, it)
		}
	}
	return added
}

// UpdateItem renames an item or flips its win flag.
func (s *GameStore) UpdateItem(categoryID, itemID string, upd models.ItemUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.find(categoryID)
	if c == nil {
		return
	}
	for i := range c.Items {
		if c.Items[i].ID != itemID {
			continue
		}
		if upd.Name != nil {
			if name := strings.TrimSpace(*upd.Name); name != "" {
				c.Items[i].Name = name
			}
		}
		if upd.HasWon != nil {
			c.Items[i].HasWon = *upd.HasWon
		}
		c.UpdatedAt = s.now()
		return
	}
}

// DeleteItem removes an item from a category.
func (s *GameStore) DeleteItem(categoryID, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.find(categoryID)
	if c == nil {
		return
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.UpdatedAt = s.now()
			return
		}
	}
}

// ResetCategoryWinners makes every item of a category eligible again.
// History is not touched.
func (s *GameStore) ResetCategoryWinners(categoryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.find(categoryID)
	if c == nil {
		return
	}
	for i := range c.Items {
		c.Items[i].HasWon = false
	}
	c.UpdatedAt = s.now()
}

// ConfirmWinners commits a pre-selected set of winners: they are marked as
// won when RemoveAfterWin is set, and a DrawResult is recorded. It reports
// false, recording nothing, when the category no longer exists or winners is empty.
func (s *GameStore) ConfirmWinners(categoryID string, winners []models.Item) (models.DrawResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.find(categoryID)
	if c == nil || len(winners) == 0 {
		return models.DrawResult{}, false
	}

	if s.settings.RemoveAfterWin {
		for _, w := range winners {
			for i := range c.Items {
				if c.Items[i].ID == w.ID {
					c.Items[i].HasWon = true
					break
				}
			}
		}
	}

	now := s.now()
	snapshot := make([]models.Item, len(winners))
	copy(snapshot, winners)
	result := models.DrawResult{
		ID:           newID(),
		CategoryID:   categoryID,
		CategoryName: c.Name,
		Winners:      snapshot,
		Timestamp:    now,
		ThemeColor:   c.ThemeColor,
	}
	s.history.Record(result)
	c.UpdatedAt = now
	return result.Clone(), true
}

// Settings returns the current settings.
func (s *GameStore) Settings() models.GlobalSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings merges a partial JSON settings document onto the current
// settings and returns the result.
func (s *GameStore) UpdateSettings(patch []byte) (models.GlobalSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if err := json.Unmarshal(patch, &next); err != nil {
		return s.settings, err
	}
	s.settings = next
	return s.settings, nil
}

// ReplaceSettings sets all settings at once.
func (s *GameStore) ReplaceSettings(settings models.GlobalSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings.Normalize()
}

// History returns the draw ledger, newest first.
func (s *GameStore) History() []models.DrawResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Entries()
}

// ClearHistory drops the whole ledger.
func (s *GameStore) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
}

// ExportData returns a snapshot of the whole session.
func (s *GameStore) ExportData() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]models.Category, len(s.categories))
	for i, c := range s.categories {
		categories[i] = c.Clone()
	}
	return models.Snapshot{
		Categories: categories,
		History:    s.history.Entries(),
		Settings:   s.settings,
		ExportedAt: s.now(),
		Version:    models.SnapshotVersion,
	}
}

// ImportData replaces each part of the state that is present in data and
// points the selection at the first category.
func (s *GameStore) ImportData(data models.SnapshotImport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.importLocked(data.Categories, data.History, data.Settings)
	s.currentCategoryID = s.firstCategoryID()
}

// Restore loads a persisted blob, keeping its selection when it is still valid.
func (s *GameStore) Restore(state models.PersistedState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.importLocked(state.Categories, state.History, state.Settings)
	s.currentCategoryID = s.firstCategoryID()
	if _, c := s.find(state.CurrentCategoryID); c != nil {
		s.currentCategoryID = c.ID
	}
}

// Persisted returns the state written to the blob store.
func (s *GameStore) Persisted() (models.PersistedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]models.Category, len(s.categories))
	for i, c := range s.categories {
		categories[i] = c.Clone()
	}
	history := s.history.Entries()
	settings, err := json.Marshal(s.settings)
	if err != nil {
		return models.PersistedState{}, err
	}
	return models.PersistedState{
		Categories:        &categories,
		History:           &history,
		Settings:          settings,
		CurrentCategoryID: s.currentCategoryID,
	}, nil
}

func (s *GameStore) importLocked(categories *[]models.Category, history *[]models.DrawResult, settings []byte) {
	if categories != nil {
		s.categories = make([]*models.Category, 0, len(*categories))
		for _, c := range *categories {
			nc := s.normalizeCategory(c)
			s.categories = append(s.categories, &nc)
		}
	}
	if history != nil {
		s.history.replace(*history)
	}
	if len(settings) > 0 && string(settings) != "null" {
		next := s.settings
		if err := json.Unmarshal(settings, &next); err != nil {
			logger.Warningf("Skipping unreadable settings on import: %v", err)
		} else {
			s.settings = next
		}
	}
}

// normalizeCategory fills defaults for fields older exports may lack and
// reissues duplicate item ids.
func (s *GameStore) normalizeCategory(c models.Category) models.Category {
	c = c.Clone()
	now := s.now()
	if c.ID == "" {
		c.ID = newID()
	}
	if !c.ThemeColor.Valid() {
		c.ThemeColor = models.DefaultThemeColor
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = c.CreatedAt
	}
	seen := make(map[string]bool, len(c.Items))
	for i := range c.Items {
		if c.Items[i].ID == "" || seen[c.Items[i].ID] {
			c.Items[i].ID = newID()
		}
		seen[c.Items[i].ID] = true
		if c.Items[i].CreatedAt == 0 {
			c.Items[i].CreatedAt = c.CreatedAt
		}
	}
	return c
}

// ResetAllData drops all categories and history. Settings are kept.
func (s *GameStore) ResetAllData() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories = make([]*models.Category, 0)
	s.history.Clear()
	s.currentCategoryID = ""
}

// InitializeDefaultCategory makes sure a session always has a category to
// work with and that one is selected.
func (s *GameStore) InitializeDefaultCategory() {
	s.mu.RLock()
	empty := len(s.categories) == 0
	s.mu.RUnlock()

	if empty {
		c := s.CreateCategory(DefaultCategoryName, models.ThemeBlue)
		s.SetCurrentCategory(c.ID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, c := s.find(s.currentCategoryID); c == nil {
		s.currentCategoryID = s.firstCategoryID()
	}
}
