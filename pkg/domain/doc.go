/*
Package domain contains the core types shared by the sync engine, its ports and its adapters.

It is kept free of I/O and of any knowledge about concrete stores or runtimes.

# Key Entities

  - Snapshot: the runtime's materialized (data, state) view at one instant.
  - Namespace: the first path segment; only "data" and "state" are externally owned.
  - Command: a closed set of requests (SetValue, SetMany, ExecuteAction) applied to the runtime.
  - Error: the coded error surface (VALIDATION_ERROR, EXECUTION_ERROR, SYNC_ERROR, ADAPTER_ERROR, DISPOSED_ERROR).
  - ChangeSet: an ordered, de-duplicated set of changed paths awaiting a push.
  - Hooks: observability callbacks fired by the engine.
*/
package domain
