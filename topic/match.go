package topic

import "strings"

// ValidateTopicName checks a PUBLISH topic name: non-empty, no wildcard
// characters, and bounded length, per [MQTT-3.3.2-2] / [MQTT-4.7.3-1].
func ValidateTopicName(name string) bool {
	if name == "" || len(name) > 65535 {
		return false
	}
	return !strings.ContainsAny(name, "+#")
}

// ValidateFilter checks a SUBSCRIBE topic filter: '#' only as the last,
// standalone level and '+' only as a standalone level, per
// [MQTT-4.7.1-2] and [MQTT-4.7.1-3].
func ValidateFilter(filter string) bool {
	if filter == "" || len(filter) > 65535 {
		return false
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if level == "#" && i != len(levels)-1 {
			return false
		}
		if level != "#" && level != "+" && strings.ContainsAny(level, "+#") {
			return false
		}
	}
	return true
}

// Matches reports whether topicName matches filter under the MQTT
// wildcard rules: '+' matches exactly one level, a trailing '#' matches
// that level and all levels below it, and a filter starting with a
// wildcard never matches a topic whose first level begins with '$'
// [MQTT-4.7.2-1].
func Matches(filter, topicName string) bool {
	fLevels := strings.Split(filter, "/")
	tLevels := strings.Split(topicName, "/")

	if len(tLevels) > 0 && strings.HasPrefix(tLevels[0], "$") {
		if len(fLevels) > 0 && (fLevels[0] == "#" || fLevels[0] == "+") {
			return false
		}
	}

	i := 0
	for ; i < len(fLevels); i++ {
		if fLevels[i] == "#" {
			return true
		}
		if i >= len(tLevels) {
			return false
		}
		if fLevels[i] != "+" && fLevels[i] != tLevels[i] {
			return false
		}
	}
	return i == len(tLevels)
}
