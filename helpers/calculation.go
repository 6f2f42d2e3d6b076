package helpers

import "math"

func Clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func Contains(list []string, str string) bool {
	for _, s := range list {
		if s == str {
			return true
		}
	}
	return false
}
