package board

import (
	"issueboard/internal/models"
)

// FilterAll is the wildcard selector value.
const FilterAll = "All"

// Filter narrows the displayed issues. A nil selector matches everything.
type Filter struct {
	Status   *models.Status
	Priority *models.Priority
}

// ParseFilter builds a filter from wire values; "" and "All" are wildcards.
func ParseFilter(status, priority string) (Filter, error) {
	var f Filter
	if status != "" && status != FilterAll {
		s, err := models.ParseStatus(status)
		if err != nil {
			return Filter{}, err
		}
		f.Status = &s
	}
	if priority != "" && priority != FilterAll {
		p, err := models.ParsePriority(priority)
		if err != nil {
			return Filter{}, err
		}
		f.Priority = &p
	}
	return f, nil
}

// Match reports whether the issue passes both selectors.
func (f Filter) Match(issue models.Issue) bool {
	if f.Status != nil && issue.Status != *f.Status {
		return false
	}
	if f.Priority != nil && issue.Priority != *f.Priority {
		return false
	}
	return true
}

// StatusLabel returns the wire value of the status selector.
func (f Filter) StatusLabel() string {
	if f.Status == nil {
		return FilterAll
	}
	return string(*f.Status)
}

// PriorityLabel returns the wire value of the priority selector.
func (f Filter) PriorityLabel() string {
	if f.Priority == nil {
		return FilterAll
	}
	return string(*f.Priority)
}

// Apply returns the issues matching f in their original order.
func Apply(issues []models.Issue, f Filter) []models.Issue {
	out := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		if f.Match(issue) {
			out = append(out, issue)
		}
	}
	return out
}
