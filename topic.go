package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Topic validation errors.
var (
	ErrEmptyTopic         = fmt.Errorf("%w: empty topic", ErrInvalidParameter)
	ErrInvalidTopicName   = fmt.Errorf("%w: invalid topic name", ErrInvalidParameter)
	ErrInvalidTopicFilter = fmt.Errorf("%w: invalid topic filter", ErrInvalidParameter)
)

const (
	topicSeparator      = '/'
	singleLevelWildcard = '+'
	multiLevelWildcard  = '#'
)

// ValidateTopicName checks a topic name used in PUBLISH and will messages.
// Names must be non-empty UTF-8 without wildcards or null characters.
func ValidateTopicName(topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if len(topic) > maxUint16 || !utf8.ValidString(topic) {
		return ErrInvalidTopicName
	}

	for _, r := range topic {
		if r == 0 || r == singleLevelWildcard || r == multiLevelWildcard {
			return ErrInvalidTopicName
		}
	}

	return nil
}

// ValidateTopicFilter checks a topic filter used in SUBSCRIBE and UNSUBSCRIBE.
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return ErrEmptyTopic
	}
	if len(filter) > maxUint16 || !utf8.ValidString(filter) || strings.IndexByte(filter, 0) >= 0 {
		return ErrInvalidTopicFilter
	}

	levels := strings.Split(filter, string(topicSeparator))
	for i, level := range levels {
		if strings.ContainsRune(level, singleLevelWildcard) && level != string(singleLevelWildcard) {
			return ErrInvalidTopicFilter
		}
		if strings.ContainsRune(level, multiLevelWildcard) {
			if level != string(multiLevelWildcard) || i != len(levels)-1 {
				return ErrInvalidTopicFilter
			}
		}
	}

	return nil
}

// TopicMatch reports whether topic matches filter.
// Topics starting with '$' are not matched by filters starting with a wildcard.
func TopicMatch(filter, topic string) bool {
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(filter, "+") || strings.HasPrefix(filter, "#")) {
		return false
	}

	for {
		fLevel, fRest, fMore := strings.Cut(filter, string(topicSeparator))
		tLevel, tRest, tMore := strings.Cut(topic, string(topicSeparator))

		switch {
		case fLevel == string(multiLevelWildcard):
			return true
		case fLevel != string(singleLevelWildcard) && fLevel != tLevel:
			return false
		}

		if !fMore || !tMore {
			// "a/#" also matches "a"
			if fMore && !tMore && fRest == string(multiLevelWildcard) {
				return true
			}
			return fMore == tMore
		}

		filter, topic = fRest, tRest
	}
}
