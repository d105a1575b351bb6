// Package registry implements the server-side device registry: a
// concurrency-safe mapping from device id to a live storage-engine handle.
//
// A device must be registered here before the RPC dispatcher can route
// operations to it. Lookups are lock-free on the happy path and may be
// issued concurrently from any number of dispatcher goroutines; Register
// and Deregister mutate the mapping itself but never hold any exclusion
// while the engine executes an operation.
//
// Deregistration drains: the device first moves to Closing, in-flight
// operations are allowed to finish (bounded by a drain timeout), and only
// then is the engine closed. From the moment a device starts closing, every
// resolve attempt reports ErrDeviceClosed; an id that was never registered
// reports ErrDeviceNotFound. The two outcomes are deliberately distinct
// first-class results, not generic lookup failures.
package registry
