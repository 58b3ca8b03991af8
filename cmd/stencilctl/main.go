// Command stencilctl runs the reference heat-diffusion demo simulation
// locally, decomposed across an in-process rank group, configured from
// a YAML file (see config.go).
package main

func main() {
	Execute()
}
