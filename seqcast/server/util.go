package seqcastserver

import "strconv"

var siPrefixes = []string{"", "K", "M", "G", "T"}

// hscale formats f with an SI prefix and the given unit.
func hscale(f float64, unit string) string {
	i := 0
	for ; f >= 1e3 && i < len(siPrefixes)-1; i++ {
		f /= 1e3
	}
	prec := 2
	if i == 0 && unit != "" {
		prec = 0
	}
	return strconv.FormatFloat(f, 'f', prec, 64) + siPrefixes[i] + unit
}

// hbytes == "human bytes"
func hbytes(i uint64) string {
	return hscale(float64(i), "B")
}

// hcount == "human count"
func hcount(i uint64) string {
	if i < 1e3 {
		return strconv.FormatUint(i, 10)
	}
	return hscale(float64(i), "")
}

// hrate == "human rate"
func hrate(f float64) string {
	return hscale(f, "")
}
