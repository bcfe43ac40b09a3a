// Package events provides a lightweight publish/subscribe broker for
// coordination events: discovery passes, session lifecycle transitions,
// node evictions, and synchronization outcomes. Subscribers receive events
// over buffered channels; slow subscribers drop rather than block the
// coordinator.
package events
