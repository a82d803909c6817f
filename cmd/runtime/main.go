// Package main is the entrypoint for the script-runtime binary.
package main

func main() {
	Execute()
}
