// crmflowctl inspects rule sets, dry-runs payloads and reads dead letters
// without a running server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
