package main

import "github.com/ethanolivertroy/kpi-checker/cmd"

func main() {
	cmd.Execute()
}
