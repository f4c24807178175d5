package main

import (
	"flag"
	"strings"
)

type flags struct {
	inputs         []string
	output         string
	mapCategorical bool
}

// parseFlags reads the cleaner flags. Categorical encoding is off unless
// asked for, so the clean file keeps the readable labels.
func parseFlags(args []string) (flags, error) {
	fs := flag.NewFlagSet("cleaner", flag.ContinueOnError)
	in := fs.String("in", "", "comma-separated raw CSV files (default paths.raw)")
	out := fs.String("out", "", "clean CSV path (default paths.clean)")
	mapCats := fs.Bool("map-categorical", false, "encode room_type and neighbourhood")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	f := flags{output: *out, mapCategorical: *mapCats}
	if *in != "" {
		f.inputs = strings.Split(*in, ",")
	}
	return f, nil
}
