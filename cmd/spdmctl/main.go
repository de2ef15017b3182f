// spdmctl is the CLI client for the spdm-responderd admin API.
package main

import "github.com/spdm-io/spdm-responder/cmd/spdmctl/commands"

func main() {
	commands.Execute()
}
