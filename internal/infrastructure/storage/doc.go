/*
Package storage provides the tab-scoped key-value stores that back the
conversation session record.

Every browser tab gets its own namespace, so two tabs never share a
session. Three backends are available:

  - memory: process-local, backed by go-cache with an inactivity TTL
  - file:   one JSON document per tab under a directory, survives restarts
  - redis:  shared between host replicas, keys carry the same TTL

Example:

	backend, err := storage.Open(storage.Options{Driver: "memory", TTL: 24 * time.Hour})
	store := backend.Scope(tabID)
	store.Set("maxChatSession", payload)
*/
package storage
