// Package http exposes the widget host over JSON.
//
// A page registers itself with POST /tabs and then drives its tab with
// event endpoints (login, visibility, open, close, clear, messages,
// notification click and dismiss). Every event answers with the full tab
// state; GET /tabs/:id returns the same state and is meant to be polled.
// There is no push channel.
//
// Transcript entries carry an html field sanitized with bluemonday so the
// page can insert it without further escaping.
package http
