package export

import (
	"fmt"
	"regexp"
)

// Filter is a predicate over metric entities. Filters compose with And so
// traversal rules stay testable in isolation instead of being interpolated
// into catalog queries.
type Filter func(MetricEntity) bool

// MatchAll accepts every entity.
func MatchAll() Filter {
	return func(MetricEntity) bool { return true }
}

// NameMatches accepts entities whose name contains a match of the pattern.
func NameMatches(pattern string) (Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, NewConfigError(fmt.Sprintf("invalid name pattern %q", pattern), err)
	}
	return func(e MetricEntity) bool { return re.MatchString(e.Name) }, nil
}

// KindMatches accepts entities whose kind contains a match of the pattern.
func KindMatches(pattern string) (Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, NewConfigError(fmt.Sprintf("invalid kind pattern %q", pattern), err)
	}
	return func(e MetricEntity) bool { return re.MatchString(e.Kind) }, nil
}

// And accepts entities that satisfy every given filter.
func And(filters ...Filter) Filter {
	return func(e MetricEntity) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

// Select returns the entities accepted by the filter, in input order.
func Select(entities []MetricEntity, f Filter) []MetricEntity {
	var out []MetricEntity
	for _, e := range entities {
		if f(e) {
			out = append(out, e)
		}
	}
	return out
}
