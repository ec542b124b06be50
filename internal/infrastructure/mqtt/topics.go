package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the controller bus.
const (
	// TopicPrefix is the root of every controller topic.
	TopicPrefix = "huntsman"

	// TopicPrefixEvent carries remote latch state, one retained topic per latch.
	TopicPrefixEvent = "huntsman/event"

	// TopicPrefixCore carries controller output (state, narration).
	TopicPrefixCore = "huntsman/core"

	// TopicPrefixSystem carries process presence (LWT).
	TopicPrefixSystem = "huntsman/system"
)

// Topics provides builders for controller MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Event("camera-01", "camera") // huntsman/event/camera-01/camera
type Topics struct{}

// Event returns the retained topic mirroring a remote latch.
// The uri is sanitised so it always occupies exactly one topic level.
//
// Example: huntsman/event/camera-01/camera
func (Topics) Event(uri, eventType string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixEvent, SanitiseLevel(uri), eventType)
}

// AllEvents matches every remote latch topic.
//
// Pattern: huntsman/event/+/+
func (Topics) AllEvents() string {
	return TopicPrefixEvent + "/+/+"
}

// CoreState returns the retained topic carrying the current state.
//
// Example: huntsman/core/state
func (Topics) CoreState() string {
	return TopicPrefixCore + "/state"
}

// CoreSay returns the narration topic.
//
// Example: huntsman/core/say
func (Topics) CoreSay() string {
	return TopicPrefixCore + "/say"
}

// SystemStatus returns the presence topic used for the Last Will.
//
// Example: huntsman/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SanitiseLevel makes s safe to use as a single topic level:
// separators and wildcards become underscores.
func SanitiseLevel(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}

// ParseEventTopic splits an event topic into its uri and type levels.
func ParseEventTopic(topic string) (uri, eventType string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixEvent+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
