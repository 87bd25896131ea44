package enrollkit

// Version is the library version, overridable at build time with
// -ldflags "-X github.com/enrollkit/enrollkit.Version=...".
var Version = "0.3.0"
