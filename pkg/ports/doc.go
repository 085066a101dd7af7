/*
Package ports defines the driven ports (interfaces) for the coachflow engine.

These interfaces decouple the flow engine from external implementations, allowing
it to work with various sequence sources, key/value backends and event buses.

# Key Interfaces

  - SequenceLoader: Responsible for loading Sequence documents (e.g., from files, Loam or Memory).
  - KeyValueStore: Reads and writes the "namespace.key" entries conditions and actions operate on.
  - EventSink: Receives trigger actions (analytics, notifications, schedulers).
  - ContentResolver: Resolves contentKey pointers to display text.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - FlowService: The driving port used by transports (HTTP, MCP, terminal).
*/
package ports
