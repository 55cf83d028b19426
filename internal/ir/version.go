package ir

// HarnessVersion is the hostbench version, reported by the CLI and sent
// as the release download User-Agent.
const HarnessVersion = "0.1.0"
