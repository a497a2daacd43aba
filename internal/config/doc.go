// Package config defines the server configuration consumed by the lifecycle
// manager: what to launch (direct command or delegated harness), where it
// serves, how to probe it, and the environment it runs with. It also loads
// declarative YAML config files mapping slot names to server configurations.
package config
