// Package messaging maps broker topics to pix key use cases.
//
// Every key state event travels on its own topic so consumers can scale per
// step. The dispatcher gives each record at-least-once treatment: retried
// with backoff, then parked on a dead-letter topic.
package messaging

import (
	"strings"

	"pixkeys/internal/pixkey/models"
)

const (
	TopicPrefix = "pixkeys."

	TopicClaimReady      = TopicPrefix + "claim.ready"
	TopicIntegrityAlerts = TopicPrefix + "integrity.alerts"

	TopicNotifyEmail = TopicPrefix + "notifications.email"
	TopicNotifySMS   = TopicPrefix + "notifications.sms"

	dlqSuffix = ".dlq"

	HeaderError    = "x-error"
	HeaderAttempts = "x-attempts"
)

// EventTopic is the topic an event name is published on.
func EventTopic(eventName string) string {
	return TopicPrefix + eventName
}

func KeyTopic(state models.KeyState) string {
	return EventTopic(state.EventName())
}

func ExpiredTopic(state models.KeyState) string {
	return EventTopic(models.ExpiredEventName(state))
}

func DecodedTopic(state models.DecodedKeyState) string {
	return EventTopic(state.EventName())
}

// DeadLetterTopic is where records of topic land once retries are spent.
func DeadLetterTopic(topic string) string {
	return topic + dlqSuffix
}

func IsDeadLetterTopic(topic string) bool {
	return strings.HasSuffix(topic, dlqSuffix)
}

// OutboundTopics lists every topic the worker produces to without consuming.
func OutboundTopics() []string {
	topics := []string{TopicIntegrityAlerts, TopicNotifyEmail, TopicNotifySMS}
	for _, s := range []models.DecodedKeyState{models.DecodedKeyPending, models.DecodedKeyConfirmed, models.DecodedKeyError} {
		topics = append(topics, DecodedTopic(s))
	}
	return topics
}

// KeyEventTopics lists the topic of every key state event, consumed or not.
func KeyEventTopics() []string {
	topics := make([]string, 0, len(models.AllStates))
	for _, s := range models.AllStates {
		topics = append(topics, KeyTopic(s))
	}
	return topics
}

// ProvisionTopics lists every topic the worker touches, given the topics it
// consumes: each consumed topic gets its dead-letter topic alongside.
func ProvisionTopics(consumed []string) []string {
	seen := make(map[string]bool)
	var topics []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	for _, t := range KeyEventTopics() {
		add(t)
	}
	for _, t := range OutboundTopics() {
		add(t)
	}
	for _, t := range consumed {
		add(t)
		add(DeadLetterTopic(t))
	}
	return topics
}
