/*
Package event provides a type-safe pub/sub event system for the toolgate
runtime.

Publishers emit events and subscribers react to them without direct
dependencies. The package is built on top of watermill's gochannel for
infrastructure while maintaining direct-call semantics to preserve type
information.

# Event Types

Approval events:
  - approval.required: a tool call needs a user decision
  - approval.resolved: a pending decision was answered

Tool events:
  - tool.started: tool execution began
  - tool.completed: tool execution finished
  - turn.completed: a dispatch turn finished

Store events:
  - store.updated: the persistent pattern store changed on disk

Run events:
  - run.error: a dispatch run failed

# Basic Usage

Publishing:

	event.Publish(event.Event{
		Type: event.ToolCompleted,
		Data: event.ToolCompletedData{ToolName: "bash"},
	})

Subscribing:

	unsubscribe := event.Subscribe(event.ApprovalRequired, func(e event.Event) {
		data := e.Data.(event.ApprovalRequiredData)
		log.Info().Str("id", data.ID).Msg("approval requested")
	})
	defer unsubscribe()

# Subscriber Safety

When using PublishSync, subscribers run in the publisher's goroutine. They
must complete quickly, use non-blocking channel sends, and never publish
re-entrantly or acquire locks the publisher might hold.

For testing or isolation, create private bus instances with NewBus and reset
the global bus with Reset.
*/
package event
