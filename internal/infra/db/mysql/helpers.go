package mysql

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// decodeSession turns the data column back into a session.
func decodeSession(data []byte) (*session.Session, error) {
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session row: %w", err)
	}
	return &s, nil
}
