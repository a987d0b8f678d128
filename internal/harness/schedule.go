package harness

import "math"

// Schedule returns the increasing iteration budgets 0, 1, 2, 3, 5, 8, ...
// up to and including maxIter. Each budget is the ceiling of the previous
// one times growth, and at least one more than it.
func Schedule(maxIter int, growth float64) []int {
	if maxIter < 0 {
		return nil
	}
	if growth <= 1 {
		growth = 1.5
	}

	out := []int{0}
	for cur := 0; cur < maxIter; {
		next := int(math.Ceil(float64(cur) * growth))
		if next <= cur {
			next = cur + 1
		}
		if next > maxIter {
			next = maxIter
		}
		out = append(out, next)
		cur = next
	}
	return out
}
