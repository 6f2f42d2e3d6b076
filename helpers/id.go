package helpers

import (
	"regexp"
	"strings"
	"time"

	"github.com/ducksouplab/framemixer/env"
	"github.com/google/uuid"
)

const (
	maxParsedLength = 50
)

var unsafeChars = regexp.MustCompile("[^a-zA-Z0-9-_]+")

func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

func NowPrefix() string {
	return time.Now().Format(env.TimeFormat)
}

// ParseString removes special characters like / . *
func ParseString(str string) string {
	clean := unsafeChars.ReplaceAllString(str, "")
	if len(clean) == 0 {
		return "default"
	}
	if len(clean) > maxParsedLength {
		return clean[:maxParsedLength]
	}
	return clean
}
