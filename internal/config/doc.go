// Package config holds the settings of a linkscan run: the source, base
// domain, transport, verification concurrency and output options, plus the
// optional .linkscan YAML file with per-site request settings.
package config
