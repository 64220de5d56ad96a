package telemetry

import "strconv"

// AppendRecord appends the record for one cycle to buf and returns the
// extended slice: the temperature to two decimals plus the probe's constant
// marker set, e.g. {:temp 23.46 :foo #{1 2 3 42}}.
func AppendRecord(buf []byte, temperature float64) []byte {
	buf = append(buf, "{:temp "...)
	buf = strconv.AppendFloat(buf, temperature, 'f', 2, 64)
	buf = append(buf, " :foo #{1 2 3 42}}"...)
	return buf
}
