package event

import "sort"

// Filter narrows the event stream to the types the trigger handles. Keys are
// event types, values are the attribute names of interest, where Wildcard
// matches any attribute.
type Filter map[string][]string

// DefaultFilter returns the registration set for the trigger: the entity
// change events the bridge syncs plus every schema change event, since those
// require a routing reset.
func DefaultFilter() Filter {
	f := Filter{
		"Shotgun_Note_Change":    {Wildcard},
		"Shotgun_Task_Change":    {Wildcard},
		"Shotgun_Ticket_Change":  {Wildcard},
		"Shotgun_Project_Change": {Wildcard},
		"Shotgun_Asset_Change":   {Wildcard},
		"Shotgun_TimeLog_Change": {Wildcard},
	}
	for _, t := range SchemaChangeEventTypes {
		f[t] = []string{Wildcard}
	}
	return f
}

// Match reports whether the event passes the filter.
func (f Filter) Match(e *Event) bool {
	attrs, ok := f[e.EventType]
	if !ok {
		return false
	}
	for _, attr := range attrs {
		if attr == Wildcard || attr == e.AttributeName {
			return true
		}
	}
	return false
}

// EventTypes returns the filtered event types in sorted order, suitable for
// an event-log query.
func (f Filter) EventTypes() []string {
	types := make([]string, 0, len(f))
	for t := range f {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
