package config

// DevProfile returns a starter YAML configuration for local development:
// both capture directions on, readable text logs at debug, metrics exposed,
// and config hot reload enabled.
func DevProfile() string {
	return `# bodytap configuration (dev profile)

capture:
  request_body: true
  response_body: true
  max_body_size: 4096

client:
  timeout: 30s
  response_header_timeout: 30s
  max_idle_conns: 100
  max_idle_conns_per_host: 10

logging:
  level: debug
  format: text

metrics:
  enabled: true
  listen: 127.0.0.1:9464

reload:
  enabled: true
  watch_file: true
  debounce: 2s
`
}

// ProdProfile returns a starter YAML configuration for production use:
// capture off by default (opt in per deployment), JSON logs at info,
// metrics exposed locally.
func ProdProfile() string {
	return `# bodytap configuration (prod profile)

capture:
  request_body: false
  response_body: false
  max_body_size: 4096

client:
  timeout: 30s
  response_header_timeout: 30s
  max_idle_conns: 100
  max_idle_conns_per_host: 10

logging:
  level: info
  format: json

metrics:
  enabled: true
  listen: 127.0.0.1:9464

reload:
  enabled: true
  watch_file: true
  debounce: 2s
`
}
