// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package models

import "fmt"

// Child represents one tracked subject from the Baby Buddy children endpoint.
type Child struct {
	ID        int     `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	BirthDate string  `json:"birth_date"` // YYYY-MM-DD
	Slug      string  `json:"slug"`
	Picture   *string `json:"picture,omitempty"`
}

// FullName returns the child's display name.
func (c *Child) FullName() string {
	return fmt.Sprintf("%s %s", c.FirstName, c.LastName)
}

// DashboardPath returns the server-relative dashboard URL for this child.
func (c *Child) DashboardPath() string {
	return fmt.Sprintf("/children/%s/dashboard/", c.Slug)
}

// ChildrenPage is one page of the paginated children listing.
type ChildrenPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Child `json:"results"`
}

// IDs returns the set of child identifiers present in this page.
func (p *ChildrenPage) IDs() []int {
	ids := make([]int, 0, len(p.Results))
	for i := range p.Results {
		ids = append(ids, p.Results[i].ID)
	}
	return ids
}
