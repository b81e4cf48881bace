/*
Package ports defines the driven ports (interfaces) of the iaqflow engine.

These interfaces decouple the decision core from its collaborators, allowing the
engine to read frames from files or request bodies, fetch reference data from a
remote service, and hand reports to any number of writers and stores.

# Key Interfaces

  - FrameSource: yields timestamp-ordered frames (CSV, JSON lines, memory).
  - ReferenceProvider: fetches auxiliary environmental data once per run.
  - ReportWriter: formats or ships a finished report (CSV, XLSX, PDF, Postgres, Kafka).
  - EventPublisher: ships events to a broker (Kafka).
  - RunStore: keeps finished reports by run ID (memory, file, Redis).
  - Runner: runs the engine over a source; the HTTP adapter depends on it.
*/
package ports
