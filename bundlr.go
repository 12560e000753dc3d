package main

import (
	"github.com/cpacia/bundlr/cmd"
	"github.com/jessevdk/go-flags"
	"log"
	"os"
)

func main() {
	parser := flags.NewParser(nil, flags.Default)

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"init", "initialize a data directory",
			"The init command creates the data directory, the funding journal and a new key file for the configured currency.",
			&cmd.Init{}},
		{"info", "print relay metadata",
			"The info command prints the relay version, gateway and deposit addresses.",
			&cmd.Info{}},
		{"balance", "print a relay balance",
			"The balance command prints the relay balance of the configured key or of --address.",
			&cmd.Balance{}},
		{"upload", "upload a file",
			"The upload command signs a file with the configured key into a bundle transaction and posts it to the relay.",
			&cmd.Upload{}},
		{"fund", "fund the relay balance",
			"The fund command pays the relay's deposit address, waits for confirmation and notifies the relay.",
			&cmd.Fund{}},
		{"notify", "finish interrupted fundings",
			"The notify command notifies the relay of every journaled funding it has not credited yet.",
			&cmd.Notify{}},
		{"devnet", "start a local dev relay",
			"The devnet command starts a relay backed by an in-memory mock chain that mines a block every --blocktime. "+
				"Use --fund to credit the key file's mock account.",
			&cmd.DevNet{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			log.Fatal(err)
		}
	}

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}
