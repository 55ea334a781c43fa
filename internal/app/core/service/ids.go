package service

import (
	"strings"

	"github.com/google/uuid"

	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
)

// RequireID trims value and checks that it is a UUID.
func RequireID(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", svcerrors.Validation("%s is required", field)
	}
	if _, err := uuid.Parse(value); err != nil {
		return "", svcerrors.InvalidID(field, value)
	}
	return value, nil
}

// RequireIDs validates every id and drops duplicates, keeping the first
// occurrence of each.
func RequireIDs(field string, values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		id, err := RequireID(field, v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// Diff returns the members of a that are absent from b, in a's order.
func Diff(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, id := range b {
		drop[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
