/*
Package config loads the sentinel configuration.

Values start from Default, are overlaid by a YAML file and finally by the
SENTINEL_API_AUTH_HEADER environment variable. The result is validated with
struct tags; Validate reports every violation in one error.

	api:
	  base_url: https://appliances.example.com
	  auth_header: "Bearer ..."
	  actor_email: ops@example.com
	processing:
	  stale_threshold_minutes: 30
	  scan_interval: 5m
	storage:
	  driver: bolt
	  data_dir: /var/lib/sentinel

Durations use Go syntax ("500ms", "5m").
*/
package config
