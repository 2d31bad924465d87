// Package metric holds the Prometheus instruments for wwwhisper.
//
// Metrics live on a private registry, exposed at /metrics when
// server.metrics.enabled is set:
//
//   - wwwhisper_authz_decisions_total{decision,reason}
//   - wwwhisper_authz_decision_duration_seconds
//   - wwwhisper_logins_total{result}
//   - wwwhisper_sessions_active, wwwhisper_sessions_collected_total
//   - wwwhisper_http_requests_total{method,route,status}
//   - wwwhisper_http_request_duration_seconds{method,route}
//   - wwwhisper_build_info{version,commit,go_version}
//
// A nil *Metrics is valid and records nothing, so callers do not need to
// check whether metrics are enabled.
package metric
