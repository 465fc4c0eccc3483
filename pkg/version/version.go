package version

// Version is set at build time with
// -ldflags "-X github.com/kelda/licensecheck/pkg/version.Version=...".
var Version = "latest"
