// Package hostinfo discovers the local hostname and IP published to the
// coordination store during node registration.
package hostinfo
