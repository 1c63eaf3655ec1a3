// Package server exposes the Toolgate HTTP API.
//
// The API manages the persistent pattern store, answers pending approval
// requests, and runs prompts through the gated dispatcher:
//
//	GET    /health                - liveness and rule count
//	GET    /patterns              - list stored patterns and exact approvals
//	POST   /patterns              - add a pattern rule
//	GET    /patterns/{id}         - fetch one rule
//	DELETE /patterns/{id}         - remove one rule
//	DELETE /patterns?confirm=true - clear the store
//	GET    /approvals             - list pending approval requests
//	POST   /approvals/{id}        - answer a pending request
//	POST   /run                   - run a prompt through the dispatcher
//	GET    /event                 - SSE stream of bus events
//
// A run blocks whenever the model calls a tool no stored rule allows; the
// approval surfaces as an approval.required event on /event and is answered
// through POST /approvals/{id}. Server runs are capped at the serve turn
// limit regardless of the requested maxTurns.
package server
