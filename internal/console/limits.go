package console

import "unicode/utf8"

const (
	// TruncationMarker is appended to data cut at the size limit.
	TruncationMarker = " ... "
	// TruncationWarning is shown once for every truncated write.
	TruncationWarning = "Warning: truncated a very large console output.\n"
)

// Truncate cuts data to at most limit bytes without splitting a UTF-8
// sequence and appends TruncationMarker. It reports whether data was cut.
// A non-positive limit disables truncation.
func Truncate(data string, limit int) (string, bool) {
	if limit <= 0 || len(data) <= limit {
		return data, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return data[:cut] + TruncationMarker, true
}
