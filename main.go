// The main package for the storyvault executable.
package main

import "storyvault/cmd"

func main() {
	cmd.Execute()
}
