package main

import "github.com/jiegec/rustup-mirror/cmd/rustup-mirror/cmd"

func main() {
	cmd.Execute()
}
