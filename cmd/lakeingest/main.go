// Command lakeingest loads a delimited data file into an Iceberg table
// through a REST catalog, appending it in concurrent chunks.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
