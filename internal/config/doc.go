// Package config defines the deployment settings used by the binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type describes where the bot is installed, which systemd unit
// runs it, and where release artifacts and trusted configuration are fetched
// from. Defaults match the bot's stock layout under /usr/local/discord-twitch.
package config
