/*
Package domain contains the core models of the iaqflow decision engine.

It defines the vocabulary shared by the runtime, the ports and the adapters:
readings and frames coming in, classifications and per-channel state flowing
through, and events and reports going out. The package is free of I/O.

# Key Entities

  - Tier: ordered severity of a classified reading (Invalid, Normal, Elevated, Warning, Critical).
  - Frame: every Reading sharing one timestamp, keyed by channel id.
  - ChannelState: the only long-lived mutable record, one per channel, owned by the engine.
  - Event: an immutable record of one observable transition.
  - Report: the ordered events of a run plus the per-channel summary.
*/
package domain
