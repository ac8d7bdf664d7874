package app

import (
	"strconv"
	"strings"
)

// ParseChannelIDs reads channel IDs from admin input. IDs may be bare
// ("123") or channel mentions ("<#123>"), separated by commas or spaces.
// Tokens that are not IDs are skipped.
func ParseChannelIDs(raw string) []int64 {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	ids := []int64{}
	for _, f := range fields {
		f = strings.TrimSuffix(strings.TrimPrefix(f, "<#"), ">")
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
