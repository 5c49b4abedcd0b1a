package rxlog

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Discover lists the slots that have an index store in dir, in ascending
// order. Files that do not follow the ifNN-offset naming are ignored.
func Discover(dir string, capacity int) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("rxlog: read directory %q: %w", dir, err)
	}
	var slots []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		slot, ok := parseIndexName(e.Name())
		if !ok || slot >= capacity {
			continue
		}
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots, nil
}

func parseIndexName(name string) (int, bool) {
	if !strings.HasPrefix(name, "if") || !strings.HasSuffix(name, "-offset") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "if"), "-offset")
	if len(digits) != 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(digits, 16, 8)
	if err != nil {
		return 0, false
	}
	return int(v), true
}
