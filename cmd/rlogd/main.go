// Command rlogd is an administrative CLI around the RLog core: start a
// node and inspect its durable log/snapshot state. It deliberately has no
// client-facing command language (no put/get) -- that belongs to whatever
// service embeds this package's RLog, not to the log core itself.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
