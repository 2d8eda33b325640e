// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wrappers provides small helpers shared across packages.
package wrappers

// Errs keeps the first error reported by a sequence of fallible calls, such
// as metric registrations.
type Errs struct {
	Err error
}

// Add records the first non-nil error.
func (errs *Errs) Add(errors ...error) {
	if errs.Err != nil {
		return
	}
	for _, err := range errors {
		if err != nil {
			errs.Err = err
			return
		}
	}
}
