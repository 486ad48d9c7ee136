// Package config loads the authsession CLI configuration from
// ~/.config/authsession/config.yaml.
//
// Example:
//
//	storage:
//	  kind: durable
//	  prefix: "myapp."
//	oauth2:
//	  tokenURL: https://idp.example.com/oauth/token
//	  clientID: cli
//	refresh:
//	  buffer: 60s
//	  minInterval: 30s
//	  maxRetries: 1
package config
