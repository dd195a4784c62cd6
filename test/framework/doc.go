// Package framework provides helpers for integration tests: a fake appliance
// inventory served over HTTP, condition waiters and assertions over the
// operation store.
package framework
