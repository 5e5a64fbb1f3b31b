// Package tab hosts the widget of each browser tab.
//
// A Tab owns its login state and a stack of components mounted over the
// tab's storage scope: a session manager, a notification controller and
// the widget orchestrator. Reload unmounts the stack and mounts a fresh
// one over the same storage, which is how a page reload restores its
// session. Unload ends the session and drops the storage.
//
// The Manager is the registry of live tabs, keyed by ULID so listing
// follows creation order.
package tab
