// Package config loads the environment-provided inputs of a bakery stack.
// Assembly must fail here, before any resource is declared, when a required
// input is missing: no partial topology is ever producible.
package config
