// Package batch holds the helpers for tools that accept one or many event
// IDs: parsing the ID parameter, running an operation per ID and reporting
// partial failures as a single JSON document.
package batch
