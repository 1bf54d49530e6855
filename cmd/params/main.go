// Command params lists the parameters of every algorithm with their kind,
// range, default and effective value after the config file and -set flags.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"histokit/internal/cli"
	"histokit/internal/param"
	"histokit/internal/registration"
	"histokit/internal/stain"
	"histokit/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Config file (yaml, json or toml)")
	algorithm := flag.String("a", "", "Only list this algorithm (ImageRegister or ColorDeconvSvd)")
	var regSets, stainSets cli.SetFlags
	flag.Var(&regSets, "reg", "Registration parameter name=value (repeatable)")
	flag.Var(&stainSets, "stain", "Deconvolution parameter name=value (repeatable)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("params"))
		return
	}

	cfg, _, err := cli.Setup(*configPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	reg := registration.New(nil, nil).Config()
	dec := stain.New().Config()
	failed := false
	if err := cli.Apply(reg, cfg.Registration, regSets); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", reg.Algorithm(), err)
		failed = true
	}
	if err := cli.Apply(dec, cfg.Deconvolution, stainSets); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", dec.Algorithm(), err)
		failed = true
	}

	for _, c := range []*param.Config{reg, dec} {
		if *algorithm != "" && *algorithm != c.Algorithm() {
			continue
		}
		printConfig(c)
	}
	if failed {
		os.Exit(1)
	}
}

func printConfig(c *param.Config) {
	fmt.Printf("=== %s ===\n", c.Algorithm())
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tRANGE\tDEFAULT\tVALUE\tDESCRIPTION")
	for _, name := range c.Names() {
		spec, _ := c.Describe(name)
		value, _ := c.Get(name)
		rng := "-"
		if spec.Range != nil {
			rng = spec.Range.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			name, spec.Kind, rng, param.FormatValue(spec.Default), param.FormatValue(value), spec.Description)
	}
	w.Flush()
	fmt.Println()
}
