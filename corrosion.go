// Package corrosion is a transparent TCP relay that deliberately degrades
// the connections it carries, for testing how software tolerates adverse
// network conditions. Every chunk of relayed data is subject to three
// configurable faults, in order: packet loss (with burst mode), injected
// latency, and token-bucket bandwidth throttling.
package corrosion

var Version = "git"
