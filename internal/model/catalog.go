package model

// Category groups projects or tasks by kind.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Color     string `json:"color,omitempty"`
	Icon      string `json:"icon,omitempty"`
	Order     int    `json:"order"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// SetKey sets the category id.
func (c *Category) SetKey(key string) {
	c.ID = key
}

// GetKey returns the category id.
func (c *Category) GetKey() string {
	return c.ID
}

// NewCategory creates a category with timestamps set.
func NewCategory(name, categoryType string) *Category {
	c := &Category{Name: name, Type: categoryType}
	touch(&c.CreatedAt, &c.UpdatedAt)
	return c
}

// Tag is a free-form label with a display color.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// SetKey sets the tag id.
func (t *Tag) SetKey(key string) {
	t.ID = key
}

// GetKey returns the tag id.
func (t *Tag) GetKey() string {
	return t.ID
}

// NewTag creates a tag.
func NewTag(name, color string) *Tag {
	return &Tag{Name: name, Color: color, CreatedAt: NowMillis()}
}

// Setting is a key/value pair keyed by an arbitrary string.
type Setting struct {
	Key       string `json:"key"`
	Value     any    `json:"value"`
	Category  string `json:"category,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// SetKey sets the setting key.
func (s *Setting) SetKey(key string) {
	s.Key = key
}

// GetKey returns the setting key.
func (s *Setting) GetKey() string {
	return s.Key
}
