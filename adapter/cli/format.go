package cli

import "strconv"

// FormatPrice renders a monthly price in COP with Colombian digit grouping,
// e.g. 150000 as "$150.000".
func FormatPrice(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "." + s[i:]
	}
	return "$" + s
}
