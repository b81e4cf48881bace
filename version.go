package iaqflow

// Version is the release of the engine, overridden at build time with
// -ldflags "-X github.com/aretw0/iaqflow.Version=...".
var Version = "v0.1.0-dev"
