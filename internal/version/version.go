package version

// Version is the semantic version of the conduit binary. Release builds
// override this through -ldflags.
var Version = "0.1.0-dev"
