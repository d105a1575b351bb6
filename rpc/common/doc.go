// Package common provides configuration structures and logging utilities
// shared by the client and server halves of the RPC layer.
//
// The package focuses on:
//   - Configuration structures for client and server components
//   - A custom leveled-logger implementation plugged into the shared
//     logger factory used across the codebase
//
// Key Components:
//
//   - ServerConfig: configuration for a storage RPC server: listen endpoint,
//     transport knobs (worker pool, buffers, TCP options), the server-side
//     operation timeout and the device drain timeout.
//
//   - ClientConfig: configuration for client components, controlling
//     endpoints, connection fan-out, timeouts and the read-only retry budget.
//
//   - CreateLogger / InitLoggers: logger factory producing consistently
//     formatted leveled loggers for the rpc, transport and registry packages.
package common
