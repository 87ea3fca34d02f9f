package quota

import (
	"context"
	"sort"
)

// =============================================================================
// RESOLVER - YearConfig lookup
// =============================================================================

// Resolver supplies the YearConfig for a calendar year.
// Implementations return an error matching ErrConfigNotFound when the year is
// not provisioned. They never fall back to another year.
type Resolver interface {
	Resolve(ctx context.Context, year int) (YearConfig, error)
}

// StaticResolver is an in-memory Resolver. It is read-only after
// construction, so it is safe for concurrent use.
type StaticResolver struct {
	configs map[int]YearConfig
}

// NewStaticResolver validates every config and indexes it by year.
func NewStaticResolver(configs ...YearConfig) (*StaticResolver, error) {
	m := make(map[int]YearConfig, len(configs))
	for i, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m[c.Year]; dup {
			return nil, invalid(indexed("configs", i)+".year", "duplicate year %d", c.Year)
		}
		m[c.Year] = c
	}
	return &StaticResolver{configs: m}, nil
}

// Resolve returns the config for year.
func (r *StaticResolver) Resolve(_ context.Context, year int) (YearConfig, error) {
	c, ok := r.configs[year]
	if !ok {
		return YearConfig{}, &ConfigNotFoundError{Year: year}
	}
	return c, nil
}

// Years lists the provisioned years in ascending order.
func (r *StaticResolver) Years() []int {
	years := make([]int, 0, len(r.configs))
	for y := range r.configs {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
