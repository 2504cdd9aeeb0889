// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Zero values are replaced by the defaults the feed poller was tuned with
// (30 s poll, 180 KiB payload cap, 2 KiB read chunks, 32 retained arrivals).
package config
