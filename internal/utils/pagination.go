// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault parses s as an int, falling back to def when s is empty or
// malformed. Handlers use it for optional numeric query parameters such as
// the overview's ?days= window, where bad client input should degrade to
// the documented default rather than fail the request.
//
//	days := utils.AtoiDefault(c.Query("days"), 30)
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
