// Package main is the entry point for bemboot, the BEMServer deployment
// bootstrap. On container start it renders the application settings file,
// provisions backing storage, and then replaces itself with the application
// server chosen by the deployment-mode and TLS environment signals.
package main

func main() {
	Execute()
}
