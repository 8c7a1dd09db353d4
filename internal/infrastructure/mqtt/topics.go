package mqtt

import "strings"

const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// Protocol is the bridge's protocol segment.
	Protocol = "somfy"
)

// topicEscaper makes an identifier safe as a single topic level. '%' is
// escaped first so the mapping is reversible.
var topicEscaper = strings.NewReplacer(
	"%", "%25",
	"/", "%2F",
	"+", "%2B",
	"#", "%23",
	":", "%3A",
)

// topicUnescaper reverses topicEscaper.
var topicUnescaper = strings.NewReplacer(
	"%2F", "/",
	"%2B", "+",
	"%23", "#",
	"%3A", ":",
	"%25", "%",
)

// EscapeLevel escapes id for use as one topic level.
func EscapeLevel(id string) string {
	return topicEscaper.Replace(id)
}

// unescapeLevel reverses EscapeLevel.
func unescapeLevel(level string) string {
	return topicUnescaper.Replace(level)
}

// Topics builds the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("io://1234-5678-9012/4218932")
//	// Returns: "graylogic/state/somfy/io%3A%2F%2F1234-5678-9012%2F4218932"
type Topics struct{}

func build(category, id string) string {
	return TopicPrefix + "/" + category + "/" + Protocol + "/" + id
}

// Event returns the topic for a gateway event of the given name.
//
// Example: graylogic/event/somfy/ExecutionStateChangedEvent
func (Topics) Event(name string) string {
	return build("event", EscapeLevel(name))
}

// State returns the retained state topic of a device.
func (Topics) State(deviceURL string) string {
	return build("state", EscapeLevel(deviceURL))
}

// Command returns the topic commands for target are received on.
//
// Example: graylogic/command/somfy/living-room
func (Topics) Command(target string) string {
	return build("command", EscapeLevel(target))
}

// Ack returns the topic a command acknowledgement is published to.
//
// Example: graylogic/ack/somfy/6f1c0c3e-6b0e-4a53-9d7e-0d1b0b9c8e1a
func (Topics) Ack(requestID string) string {
	return build("ack", EscapeLevel(requestID))
}

// Health returns the retained bridge status topic, also used for the LWT.
//
// Example: graylogic/health/somfy
func (Topics) Health() string {
	return TopicPrefix + "/health/" + Protocol
}

// AllCommands returns the wildcard subscription for every command target.
func (Topics) AllCommands() string {
	return build("command", "+")
}

// LastLevel returns the final level of topic, unescaped.
func LastLevel(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		topic = topic[i+1:]
	}
	return unescapeLevel(topic)
}
