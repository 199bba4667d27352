package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// PriorityAlgorithm selects how candidate channels are ranked.
type PriorityAlgorithm int

const (
	// AlgorithmList ranks purely by the user's priority list order.
	AlgorithmList PriorityAlgorithm = iota
	// AlgorithmAdaptive boosts priority games whose campaigns are at risk
	// of not completing in time.
	AlgorithmAdaptive
	// AlgorithmBalanced blends user priority with time urgency.
	AlgorithmBalanced
	// AlgorithmEndingSoonest ranks campaigns by their end time.
	AlgorithmEndingSoonest
)

// String returns the string representation of a PriorityAlgorithm.
func (a PriorityAlgorithm) String() string {
	switch a {
	case AlgorithmList:
		return "LIST"
	case AlgorithmAdaptive:
		return "ADAPTIVE"
	case AlgorithmBalanced:
		return "BALANCED"
	case AlgorithmEndingSoonest:
		return "ENDING_SOONEST"
	default:
		return "LIST"
	}
}

// ParsePriorityAlgorithm converts a string to a PriorityAlgorithm.
func ParsePriorityAlgorithm(s string) PriorityAlgorithm {
	switch s {
	case "ADAPTIVE":
		return AlgorithmAdaptive
	case "BALANCED":
		return AlgorithmBalanced
	case "ENDING_SOONEST":
		return AlgorithmEndingSoonest
	default:
		return AlgorithmList
	}
}

// MarshalJSON serializes the algorithm as its name.
func (a PriorityAlgorithm) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses the algorithm from its name.
func (a *PriorityAlgorithm) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = ParsePriorityAlgorithm(s)
	return nil
}

// StringSet is an unordered set of strings that serializes as a sorted array.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given members.
func NewStringSet(members ...string) StringSet {
	set := make(StringSet, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return set
}

// Contains reports set membership.
func (s StringSet) Contains(member string) bool {
	_, ok := s[member]
	return ok
}

// Sorted returns the members as a sorted slice.
func (s StringSet) Sorted() []string {
	members := make([]string, 0, len(s))
	for m := range s {
		members = append(members, m)
	}
	sort.Strings(members)
	return members
}

// MarshalJSON serializes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON parses the set from an array.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewStringSet(members...)
	return nil
}

// Settings are the persisted user preferences.
type Settings struct {
	Proxy             string            `json:"proxy"`
	Language          string            `json:"language"`
	DarkTheme         bool              `json:"dark_theme"`
	Autostart         bool              `json:"autostart"`
	AutostartTray     bool              `json:"autostart_tray"`
	Exclude           StringSet         `json:"exclude"`
	Priority          []string          `json:"priority"`
	PriorityOnly      bool              `json:"priority_only"`
	PriorityAlgorithm PriorityAlgorithm `json:"priority_algorithm"`
	UnlinkedCampaigns bool              `json:"unlinked_campaigns"`
	ConnectionQuality int               `json:"connection_quality"`
	TrayNotifications bool              `json:"tray_notifications"`
	WindowPosition    string            `json:"window_position"`
}

// DefaultSettings returns Settings with default values.
func DefaultSettings() Settings {
	return Settings{
		Language:          "English",
		Exclude:           NewStringSet(),
		Priority:          []string{},
		PriorityOnly:      true,
		PriorityAlgorithm: AlgorithmList,
		ConnectionQuality: 1,
		TrayNotifications: true,
	}
}

// legacy settings key replaced by priority_algorithm.
const legacyEndingSoonestKey = "prioritize_by_ending_soonest"

// SettingsStore persists Settings as JSON with a dirty flag that elides
// unnecessary writes.
type SettingsStore struct {
	mu       sync.Mutex
	path     string
	settings Settings
	dirty    bool
}

// NewSettingsStore creates a store bound to the given file path, holding
// defaults until Load is called.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path, settings: DefaultSettings()}
}

// Load reads the settings file, applying the in-place legacy-key migration.
// A missing file leaves the defaults in place and marks the store dirty so
// the first Save materializes it.
func (st *SettingsStore) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		st.dirty = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading settings file: %w", err)
	}

	// Raw pass first, so legacy keys can be migrated before decoding.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing settings file: %w", err)
	}
	if legacy, ok := raw[legacyEndingSoonestKey]; ok {
		var enabled bool
		if err := json.Unmarshal(legacy, &enabled); err == nil && enabled {
			raw["priority_algorithm"] = json.RawMessage(`"ENDING_SOONEST"`)
		}
		delete(raw, legacyEndingSoonestKey)
		st.dirty = true
		if data, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("migrating settings: %w", err)
		}
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("decoding settings: %w", err)
	}
	if settings.Exclude == nil {
		settings.Exclude = NewStringSet()
	}
	st.settings = settings
	return nil
}

// ApplyEnv applies environment overrides after file load:
// prioritize_by_ending_soonest=1 forces that algorithm and
// UNLINKED_CAMPAIGNS=1 enables unlinked campaigns.
func (st *SettingsStore) ApplyEnv() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if os.Getenv(legacyEndingSoonestKey) == "1" {
		st.settings.PriorityAlgorithm = AlgorithmEndingSoonest
	}
	if os.Getenv("UNLINKED_CAMPAIGNS") == "1" {
		st.settings.UnlinkedCampaigns = true
	}
}

// Get returns a copy of the current settings.
func (st *SettingsStore) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.settings
}

// Alter applies fn to the settings under the lock and marks the store dirty.
func (st *SettingsStore) Alter(fn func(*Settings)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.settings)
	st.dirty = true
}

// Save writes the settings file if anything changed since the last write.
func (st *SettingsStore) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.dirty {
		return nil
	}

	data, err := json.MarshalIndent(st.settings, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if dir := filepath.Dir(st.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating settings directory: %w", err)
		}
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	st.dirty = false
	return nil
}
