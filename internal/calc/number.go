package calc

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coerce converts user supplied numeric text to a float. The first comma is
// read as the decimal point and the longest leading number is used, so "12 u"
// is 12 and "1.234,5" is 1.234. Text without a leading number, NaN and
// infinite values yield 0.
func Coerce(text string) float64 {
	s := numericPrefix(strings.Replace(strings.TrimSpace(text), ",", ".", 1))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return Finite(v)
}

// numericPrefix returns the longest leading decimal literal of s, with an
// optional sign, fraction and exponent
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := skipDigits(s, i) - i
	i += digits
	if i < len(s) && s[i] == '.' {
		end := skipDigits(s, i+1)
		if digits > 0 || end > i+1 {
			digits += end - i - 1
			i = end
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if end := skipDigits(s, j); end > j {
			i = end
		}
	}
	return s[:i]
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

// Finite maps NaN and ±Inf to 0.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Number is a float decoded leniently from a JSON number or a locale formatted string.
type Number float64

// Float returns the value as float64
func (n Number) Float() float64 {
	return float64(n)
}

// UnmarshalJSON never fails on bad numeric content; it coerces to 0 instead.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = Number(Coerce(s))
		return nil
	}
	*n = Number(Coerce(string(data)))
	return nil
}

// MarshalJSON encodes the number as a plain JSON number
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(Finite(float64(n)), 'f', -1, 64)), nil
}
