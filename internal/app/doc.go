// Package app contains the core application logic. It wires the environment
// configuration, the optional manifest, the topology assembly and the
// provisioning engine into the synth, apply and destroy operations, decoupled
// from any specific entrypoint like a CLI.
package app
