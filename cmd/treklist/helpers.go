package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

func parseID(kind, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID %q: %w", kind, value, err)
	}
	return id, nil
}

func parseIndex(kind, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s position %q", kind, value)
	}
	return n, nil
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
