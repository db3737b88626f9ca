package detect

import (
	"strconv"
	"strings"
)

// ClassNames maps detector class ids to display labels.
type ClassNames []string

// Name returns the label for id, or the numeric id when the table has no
// entry for it.
func (c ClassNames) Name(id int) string {
	if id >= 0 && id < len(c) {
		return c[id]
	}
	return strconv.Itoa(id)
}

// Lookup returns the id of a label, matching case-insensitively.
func (c ClassNames) Lookup(name string) (int, bool) {
	for id, n := range c {
		if strings.EqualFold(n, name) {
			return id, true
		}
	}
	return 0, false
}
