package main

import "sftp-mcp/cmd"

func main() {
	cmd.Execute()
}
