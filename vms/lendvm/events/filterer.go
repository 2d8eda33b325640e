// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import "github.com/luxfi/pubsub"

var _ pubsub.Filterer = (*Filterer)(nil)

// Filterer matches a committed event against subscriber address filters.
type Filterer struct {
	event Event
}

func NewFilterer(ev Event) *Filterer {
	return &Filterer{event: ev}
}

// Filter reports, per filter, whether any id the event refers to passes it.
// The event itself is the value delivered to matching subscribers.
func (f *Filterer) Filter(filters []pubsub.Filter) ([]bool, interface{}) {
	addrs := f.event.Addresses()
	resp := make([]bool, len(filters))
	for i, filter := range filters {
		for _, addr := range addrs {
			if filter.Check(addr[:]) {
				resp[i] = true
				break
			}
		}
	}
	return resp, f.event
}
