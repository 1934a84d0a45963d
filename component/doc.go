// Package component defines lifecycle-managed infrastructure: the tracker
// backends, the execution engine and the HTTP server all implement
// Component and are started and stopped through a Registry.
//
// # Interfaces
//
//   - Component: Start/Stop/Health lifecycle
//   - Describable: startup summary descriptions
//   - RouteProvider: HTTP routes for the startup summary
package component
