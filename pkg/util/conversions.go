package util

import (
	"fmt"
	"strconv"
	"strings"
)

// StringToUint64 converts string to uint64
func StringToUint64(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse uint64: %w", err)
	}
	return n, nil
}

// IsSnowflake reports whether s looks like a Discord id.
func IsSnowflake(s string) bool {
	if len(s) < 15 || len(s) > 20 {
		return false
	}
	_, err := StringToUint64(s)
	return err == nil
}

// ParseMention extracts the id from <@123>, <@!123>, <@&123>, <#123> or a bare id.
func ParseMention(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = strings.TrimSuffix(s[1:], ">")
		s = strings.TrimLeft(s, "@!&#")
	}
	return s, IsSnowflake(s)
}
