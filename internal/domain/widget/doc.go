// Package widget implements the assistant widget orchestrator.
//
// The orchestrator reacts to the four widget events (open, close, send,
// clear), owns the conversation transcript and performs the chat call.
// It drives the session manager for ids and activity and the notification
// controller for the greeting.
//
// Failure texts come from Messages and can be overridden with a YAML file:
//
//	timeout: "Still thinking. Please try again shortly."
//	status: "Service error (%d)."
package widget
