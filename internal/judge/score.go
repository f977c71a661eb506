package judge

// ComputeScore returns the weighted fraction of passed tests in [0, 1].
// A submission with no tests scores zero.
func ComputeScore(tests []TestOutcome) float64 {
	var total, passed float64
	for _, t := range tests {
		total += t.Weight
		if t.Passed() {
			passed += t.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return passed / total
}

// IsSuccess holds only when the compile succeeded and every test passed.
func IsSuccess(compileOK bool, score float64) bool {
	return compileOK && score == 1.0
}
