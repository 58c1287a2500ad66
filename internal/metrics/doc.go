// Package metrics counts what a mirror run did and exports the counters in
// the Prometheus text format, for pickup by the node exporter textfile
// collector after a cron-driven run.
package metrics
