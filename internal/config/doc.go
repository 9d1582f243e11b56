// Package config manages the nginxtls application settings stored in YAML
// format.
//
// The config package layers settings from three sources, later sources
// winning: platform-detected defaults, the settings file in the user's
// home directory at ~/.config/nginxtls/config.yaml (or a file named with
// --config), and NGINXTLS_* environment variables.
//
// # Settings Structure
//
// The Settings struct contains:
//   - The nginx server root and binary used for all operations
//   - The HTTP and TLS ports certificates are deployed against
//   - The work directory holding checkpoints and TLS policy files
//   - Challenge webroot locations, globally and per domain
//
// Example config.yaml:
//
//	server_root: /etc/nginx
//	nginx_bin: /usr/sbin/nginx
//	http_port: "80"
//	https_port: "443"
//	work_dir: /var/lib/nginxtls
//	dhparam_path: /var/lib/nginxtls/dhparam.pem
//	restart_sleep: 1s
//	webroot: /var/www/html
//	webroot_map:
//	  example.com: /srv/example/public
//
// # Environment Overrides
//
// Every file value has a matching environment variable, for example
// NGINXTLS_SERVER_ROOT or NGINXTLS_HTTPS_PORT. The map value uses
// comma-separated pairs:
//
//	NGINXTLS_WEBROOT_MAP="example.com:/srv/example/public,www.example.com:/srv/example/public"
//
// # Thread Safety
//
// Settings are read once at startup and treated as immutable afterwards.
// Mutating shared Settings from multiple goroutines is not safe.
package config
