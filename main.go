// Command rfplus compares phylogenetic trees on different leaf sets by
// completing them to their union and measuring the RF(+) distance.
package main

import "github.com/papapumpkin/rfplus/cmd"

func main() {
	cmd.Execute()
}
