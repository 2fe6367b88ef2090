package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Fallback scores used when a signal is missing.
const (
	DefaultWordConfidence = 50.0
	DefaultQtyConfidence  = 50.0
)

var firstIntegerRe = regexp.MustCompile(`\d+`)

// ValidateNSN scores a stock number by shape. Nine digits is the canonical
// form; eight usually means a dropped leading zero.
func ValidateNSN(nsn string) (bool, float64) {
	if nsn == "" || !isASCIIDigits(nsn) {
		return false, 0
	}
	switch n := len(nsn); {
	case n == 9:
		return true, 100
	case n == 8:
		return true, 90
	case n == 7 || n == 10:
		return true, 60
	default:
		return false, 0
	}
}

// ValidateQuantity extracts the first integer in s and scores it by
// plausibility.
func ValidateQuantity(s string) (bool, int, float64) {
	m := firstIntegerRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return false, 0, 0
	}
	qty, err := strconv.Atoi(m)
	if err != nil {
		return false, 0, 0
	}

	switch {
	case qty >= 1 && qty <= 1000:
		return true, qty, 100
	case qty >= 1001 && qty <= 10000:
		return true, qty, 70
	default:
		return true, qty, 30
	}
}

// DescriptionConfidence averages the OCR confidence of each word in desc.
// Words missing from conf count as DefaultWordConfidence.
func DescriptionConfidence(desc string, conf map[string]float64) float64 {
	words := strings.Fields(desc)
	if len(words) == 0 {
		return DefaultWordConfidence
	}
	var sum float64
	for _, w := range words {
		c, ok := conf[w]
		if !ok {
			c = DefaultWordConfidence
		}
		sum += c
	}
	return sum / float64(len(words))
}

func isASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
