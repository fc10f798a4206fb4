// Package main is responsible for the main func of revlistener.  The actual
// work is done in the cmd package.
package main

import "github.com/ameshkov/revlistener/internal/cmd"

func main() {
	cmd.Main()
}
