package cache

// Scope names the views affected by one mutation.
type Scope struct {
	Global   []string
	PickupID string
	UserID   string
	Cell     string
}

func (s Scope) Tags() []string {
	tags := append([]string(nil), s.Global...)
	if s.PickupID != "" {
		tags = append(tags, PickupTag(s.PickupID))
	}
	if s.UserID != "" {
		tags = append(tags, UserTag(s.UserID))
	}
	if s.Cell != "" {
		tags = append(tags, MapTag(s.Cell))
	}
	return tags
}

// InvalidateScope drops every view tagged by the scope.
func InvalidateScope(c Cache, s Scope) {
	if tags := s.Tags(); len(tags) > 0 {
		c.Invalidate(tags...)
	}
}
