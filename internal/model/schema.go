package model

// IndexConfig declares a secondary index on a store.
type IndexConfig struct {
	Name    string `json:"name"`
	KeyPath string `json:"keyPath"`
}

// StoreConfig declares a store: its primary key field and indexes.
type StoreConfig struct {
	Name    string        `json:"name"`
	KeyPath string        `json:"keyPath"`
	Indexes []IndexConfig `json:"indexes,omitempty"`
}

// Index looks up an index by name.
func (s StoreConfig) Index(name string) (IndexConfig, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexConfig{}, false
}

// Schema is the full set of stores a backend serves, tagged with a version.
type Schema struct {
	Name    string        `json:"name"`
	Version int           `json:"version"`
	Stores  []StoreConfig `json:"stores"`
}

// Store looks up a store by name.
func (s Schema) Store(name string) (StoreConfig, bool) {
	for _, st := range s.Stores {
		if st.Name == name {
			return st, true
		}
	}
	return StoreConfig{}, false
}

// StoreNames returns the store names in declaration order.
func (s Schema) StoreNames() []string {
	names := make([]string, len(s.Stores))
	for i, st := range s.Stores {
		names[i] = st.Name
	}
	return names
}

const (
	// SchemaName is the default database name.
	SchemaName = "taskmap"
	// SchemaVersion is the current schema version.
	SchemaVersion = 1
)

func indexes(fields ...string) []IndexConfig {
	out := make([]IndexConfig, len(fields))
	for i, f := range fields {
		out[i] = IndexConfig{Name: f, KeyPath: f}
	}
	return out
}

// DefaultSchema returns the stores used by taskmap.
func DefaultSchema() Schema {
	return Schema{
		Name:    SchemaName,
		Version: SchemaVersion,
		Stores: []StoreConfig{
			{Name: StoreProjects, KeyPath: "id", Indexes: indexes("status", "priority", "startDate", "dueDate", "category")},
			{Name: StoreTasks, KeyPath: "id", Indexes: indexes("projectId", "parentId", "status", "priority", "dueDate", "referenceNote")},
			{Name: StoreCategories, KeyPath: "id", Indexes: indexes("name", "type")},
			{Name: StoreTags, KeyPath: "id", Indexes: indexes("name", "color")},
			{Name: StoreSettings, KeyPath: "key", Indexes: indexes("category")},
			{Name: StoreTimerRecords, KeyPath: "id", Indexes: indexes("taskId", "projectId", "startTime")},
			{Name: StoreHabits, KeyPath: "id", Indexes: indexes("name", "frequency")},
		},
	}
}
