// Package ports defines the interfaces the services depend on for external systems,
// so tests can substitute mocks for the payment gateway, Google and Redis.
package ports
