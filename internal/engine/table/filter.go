package table

import (
	"sort"
	"strconv"
	"strings"

	coremodel "NetGuard/internal/core/model"
)

// ParsePortExpression parses a comma-separated list of single ports and
// inclusive ranges ("80,443", "8000-8090") into a sorted, deduplicated port
// list. Any malformed token, out-of-range port, or reversed range rejects
// the whole expression with an InvalidFilterError carrying that token.
func ParsePortExpression(expr string) ([]int, error) {
	// Tolerate the full-width comma common in CJK input.
	expr = strings.ReplaceAll(expr, "，", ",")

	set := make(map[int]struct{})
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := parsePort(strings.TrimSpace(lo))
			end, err2 := parsePort(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || start > end {
				return nil, &coremodel.InvalidFilterError{Token: part}
			}
			for p := start; p <= end; p++ {
				set[p] = struct{}{}
			}
			continue
		}

		port, err := parsePort(part)
		if err != nil {
			return nil, &coremodel.InvalidFilterError{Token: part}
		}
		set[port] = struct{}{}
	}

	if len(set) == 0 {
		return nil, &coremodel.InvalidFilterError{Token: expr}
	}

	ports := make([]int, 0, len(set))
	for p := range set {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

// PortSet converts a port list into the set form used by Filter.
func PortSet(ports []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		set[p] = struct{}{}
	}
	return set
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, &coremodel.InvalidPortError{Port: port}
	}
	return port, nil
}
