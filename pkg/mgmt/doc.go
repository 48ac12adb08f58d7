// Package mgmt is the local management registry: named units grouped by
// domain, with asynchronous registration notifications. The agent mirrors
// the distinct domains into the coordination store.
package mgmt
