package build

// Version of server. Set to tag in CI during release.
var Version = "0.0.0"

// Commit is a git revision server was built from. Set in CI during release.
var Commit string
