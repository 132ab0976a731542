/*
Package ports defines the driven ports (interfaces) of the bridge.

These interfaces decouple the sync engine from the domain runtime and from
concrete external stores (form libraries, observable stores, plain objects).

# Key Interfaces

  - Runtime: the reactive domain-state engine the bridge keeps in sync.
  - Adapter: read side of an external store (values and change notifications).
  - Actuator: write side of an external store (values and side-channel commands).

Adapters and actuators have a mandatory core and optional capabilities
(Subscribable, ValidityReader, BatchDataWriter, BatchStateWriter, Focuser,
Navigator, APICaller). Callers must type-assert before using a capability.
*/
package ports
