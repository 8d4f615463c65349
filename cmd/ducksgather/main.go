// Command ducksgather aggregates campus events from the university calendar.
package main

import "github.com/pfrederiksen/ducksgather/internal/cli"

func main() {
	cli.Execute()
}
