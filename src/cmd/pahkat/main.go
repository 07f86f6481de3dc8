// Command pahkat is the CLI front-end's entry point.
package main

import "pahkat/src/cmd"

func main() {
	cmd.Execute()
}
