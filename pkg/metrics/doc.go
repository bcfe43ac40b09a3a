/*
Package metrics tracks coordination outcomes two ways.

Aggregator holds the authentic in-process counters and running averages that
back EcosystemStatus: discovery passes, session outcomes by status, sync
requests, and coherence. Everything starts at zero and is only ever derived
from real operations; counters only increase and averages are recomputed,
never reset.

The package-level Prometheus collectors expose the same signals for
scraping. Counters and histograms are incremented at observation time by the
Aggregator; gauges are refreshed by the polling Collector. Handler serves
the standard /metrics endpoint.
*/
package metrics
