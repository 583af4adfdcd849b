package profile

// Context carries the recognized profile fields attached to an assistant
// request. Fields that do not apply to the user's current life stage stay
// empty and are omitted from the wire payload, never zero-filled.
type Context struct {
	Name             string `json:"name,omitempty"`
	DueDate          string `json:"dueDate,omitempty"`
	BabyName         string `json:"babyName,omitempty"`
	BabyBirthDate    string `json:"babyBirthDate,omitempty"`
	LastPeriodDate   string `json:"lastPeriodDate,omitempty"`
	CycleLength      int    `json:"cycleLength,omitempty"`
	PregnancyWeek    int    `json:"pregnancyWeek,omitempty"`
	IsPartnerChannel bool   `json:"isPartnerChannel,omitempty"`
}

// Store exposes profile resolution for the streaming controller. Implemented
// by the profile/onboarding collaborator; here only identity resolution.
type Store interface {
	FindByUserID(userID string) (Context, bool)
}

// MemoryStore implements Store with an in-memory map, suitable for MVP.
type MemoryStore struct {
	items map[string]Context
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied contexts.
func NewMemoryStore(items map[string]Context) *MemoryStore {
	copied := make(map[string]Context, len(items))
	for id, ctx := range items {
		copied[id] = ctx
	}
	return &MemoryStore{items: copied}
}

// FindByUserID looks up the profile context for a user.
func (s *MemoryStore) FindByUserID(userID string) (Context, bool) {
	ctx, ok := s.items[userID]
	return ctx, ok
}

// Seed provides default demo profiles for local development.
func Seed() map[string]Context {
	return map[string]Context{
		"demo-mom": {
			Name:          "Sara",
			DueDate:       "2026-11-03",
			PregnancyWeek: 26,
		},
		"demo-partner": {
			Name:             "Amir",
			DueDate:          "2026-11-03",
			IsPartnerChannel: true,
		},
	}
}
