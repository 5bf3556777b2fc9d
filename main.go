// The main package for the jobsentry executable.
package main

import (
	"github.com/jobsentry/jobsentry/cmd"
)

func main() {
	cmd.Execute()
}
