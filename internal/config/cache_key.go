package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ClassCodeKey maps a class code to the active session that owns it.
func (r *CacheKeyStruct) ClassCodeKey(code string) string {
	return fmt.Sprintf("classcode:%s", code)
}

// SessionStudentsKey returns the set of student IDs that joined a session.
func (r *CacheKeyStruct) SessionStudentsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:students", sessionID)
}

// AnswerLikesKey returns the set of user IDs that liked an answer.
func (r *CacheKeyStruct) AnswerLikesKey(answerID string) string {
	return fmt.Sprintf("answer:%s:likes", answerID)
}

// SessionEventsChannel returns the Redis PubSub channel for a session's room.
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}

// SessionEventsPattern matches every session room channel.
func (r *CacheKeyStruct) SessionEventsPattern() string {
	return "session:*:events"
}

// SessionIDFromChannel extracts the session ID from a room channel name.
func (r *CacheKeyStruct) SessionIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, "session:") || !strings.HasSuffix(channel, ":events") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(channel, "session:"), ":events")
	if id == "" {
		return "", false
	}
	return id, true
}

var CacheKey = NewCacheKeyStruct()
