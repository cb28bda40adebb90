package irt

import "github.com/pavelanni/adaptest/internal/model"

// SelectNext returns the index of the non-excluded item with maximum Fisher
// information at theta. Ties go to the lowest index. If no candidate has
// positive information the first non-excluded index is returned.
// ok is false only when every index is excluded.
func SelectNext(params []model.ItemParams, theta float64, excluded map[int]bool) (index int, ok bool) {
	best, fallback := -1, -1
	bestInfo := 0.0
	for i, ip := range params {
		if excluded[i] {
			continue
		}
		if fallback < 0 {
			fallback = i
		}
		info := Information(ip, theta)
		if info > bestInfo {
			best, bestInfo = i, info
		}
	}
	if fallback < 0 {
		return -1, false
	}
	if best < 0 {
		return fallback, true
	}
	return best, true
}
