package broker

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic layout: {prefix}/{room_id}/{who}/{direction}. The runtime subscribes
// to write topics and publishes on read topics.
const (
	RuntimeSlot = "rt"
	DirWrite    = "write"
	DirRead     = "read"
)

// Topic assembles one room topic.
func Topic(prefix, roomID, who, direction string) string {
	return strings.Join([]string{prefix, roomID, who, direction}, "/")
}

// RuntimeRead is the room-wide broadcast topic.
func RuntimeRead(prefix, roomID string) string {
	return Topic(prefix, roomID, RuntimeSlot, DirRead)
}

// PlayerRead is the private outbound topic of one player.
func PlayerRead(prefix, roomID string, player int) string {
	return Topic(prefix, roomID, strconv.Itoa(player), DirRead)
}

// DefaultSubscriptions is the write-topic set a fresh room runtime listens
// on: the global slot plus one slot per potential player.
func DefaultSubscriptions(prefix, roomID string, playersLimit int) []string {
	topics := make([]string, 0, playersLimit+1)
	topics = append(topics, Topic(prefix, roomID, RuntimeSlot, DirWrite))
	for i := 0; i < playersLimit; i++ {
		topics = append(topics, Topic(prefix, roomID, strconv.Itoa(i), DirWrite))
	}
	return topics
}

// SenderSlot extracts the {who} field from an inbound topic: "rt" for the
// global slot, otherwise the player's slot number.
func SenderSlot(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("broker: malformed topic %q", topic)
	}
	return parts[2], nil
}

// LWTTopic is where the broker announces a runtime that died without
// disconnecting.
func LWTTopic(roomID string) string {
	return "test/room/" + roomID
}

// LWTPayload is the last-will message body for a room runtime.
func LWTPayload(roomID string) string {
	return fmt.Sprintf("Room rt %s lost connection", roomID)
}
