// Command stainsep splits an H&E slide image into hematoxylin and eosin
// images.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"histokit/internal/cli"
	"histokit/internal/imaging"
	"histokit/internal/stain"
	"histokit/internal/version"
)

func main() {
	in := flag.String("in", "", "Path to RGB slide image")
	hOut := flag.String("h", "", "Hematoxylin output (default <in>_hematoxylin.png)")
	eOut := flag.String("e", "", "Eosin output (default <in>_eosin.png)")
	configPath := flag.String("config", "", "Config file (yaml, json or toml)")
	verbose := flag.Bool("v", false, "Debug logging")
	var sets cli.SetFlags
	flag.Var(&sets, "set", "Deconvolution parameter name=value (repeatable, applied in order)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("stainsep"))
		return
	}

	if *in == "" {
		fmt.Println("Usage: stainsep -in <image> [-h <file>] [-e <file>] [-set name=value ...]")
		os.Exit(1)
	}

	cfg, log, err := cli.Setup(*configPath, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log = log.With().Str("run", uuid.NewString()).Logger()

	base := strings.TrimSuffix(*in, filepath.Ext(*in))
	if *hOut == "" {
		*hOut = base + "_hematoxylin.png"
	}
	if *eOut == "" {
		*eOut = base + "_eosin.png"
	}
	for _, path := range []string{*hOut, *eOut} {
		if err := imaging.CheckOutput(path); err != nil {
			log.Fatal().Err(err).Msg("bad output path")
		}
	}

	img, err := imaging.Read(*in)
	if err != nil {
		log.Fatal().Err(err).Msg("load image")
	}

	d := stain.New(stain.WithLogger(log))
	if err := cli.Apply(d.Config(), cfg.Deconvolution, sets); err != nil {
		log.Fatal().Err(err).Msg("invalid deconvolution parameters")
	}

	res, err := d.Deconvolve(img)
	if err != nil {
		log.Fatal().Err(err).Str("image", *in).Msg("deconvolution failed")
	}

	for _, o := range []struct {
		path string
		img  imaging.Image
	}{
		{*hOut, toIntensity(res.Hematoxylin)},
		{*eOut, toIntensity(res.Eosin)},
	} {
		if err := imaging.Save(o.path, o.img); err != nil {
			log.Fatal().Err(err).Str("path", o.path).Msg("save stain image")
		}
	}

	fmt.Printf("Hematoxylin vector: %.4f %.4f %.4f -> %s\n",
		res.HematoxylinVector[0], res.HematoxylinVector[1], res.HematoxylinVector[2], *hOut)
	fmt.Printf("Eosin vector:       %.4f %.4f %.4f -> %s\n",
		res.EosinVector[0], res.EosinVector[1], res.EosinVector[2], *eOut)
}

// toIntensity maps transmission back to the 8-bit scale the input used.
func toIntensity(t imaging.Image) imaging.Image {
	out := t.Clone()
	for i, v := range out.Pix {
		out.Pix[i] = 256*v - 1
	}
	return out
}
