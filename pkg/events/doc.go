// Package events publishes onboarding domain events to collaborators outside
// the engine. Delivery of invitation emails and welcome messages happens
// there; this package only announces that something happened.
//
// AMQPPublisher is used when an AMQP URL is configured. MemoryPublisher backs
// tests and NopPublisher disables publishing.
package events
