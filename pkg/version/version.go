package version

// Version is set at build time with -ldflags "-X github.com/cloudposse/link-install/pkg/version.Version=<version>".
var Version = "0.0.0-dev"
