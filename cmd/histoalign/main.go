// Command histoalign registers a moving slide image onto a fixed one: an
// optional keypoint initialization followed by multi-resolution mutual
// information registration.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"histokit/internal/alignment"
	"histokit/internal/cli"
	"histokit/internal/imaging"
	"histokit/internal/imaging/cvops"
	"histokit/internal/optimize"
	"histokit/internal/registration"
	"histokit/internal/version"
	"histokit/pkg/geometry"
)

type outcome struct {
	result *registration.Result
	err    error
}

func main() {
	fixedPath := flag.String("fixed", "", "Path to fixed image")
	movingPath := flag.String("moving", "", "Path to moving image")
	pointsPath := flag.String("points", "", "Keypoint file: moving_x, moving_y, fixed_x, fixed_y per line")
	configPath := flag.String("config", "", "Config file (yaml, json or toml)")
	channel := flag.Int("channel", 1, "Channel used from RGB images")
	initOut := flag.String("init-out", "", "Write the keypoint checkerboard preview here")
	out := flag.String("out", "", "Write the registered checkerboard preview here")
	timeout := flag.Duration("timeout", 0, "Abort registration after this long (0 = no limit)")
	verbose := flag.Bool("v", false, "Debug logging")
	var sets cli.SetFlags
	flag.Var(&sets, "set", "Registration parameter name=value (repeatable, applied in order)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("histoalign"))
		return
	}

	if *fixedPath == "" || *movingPath == "" {
		fmt.Println("Usage: histoalign -fixed <image> -moving <image> [-points <file>] [-set name=value ...]")
		os.Exit(1)
	}
	for _, path := range []string{*initOut, *out} {
		if path == "" {
			continue
		}
		if err := imaging.CheckOutput(path); err != nil {
			fmt.Fprintf(os.Stderr, "Bad output path: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, log, err := cli.Setup(*configPath, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log = log.With().Str("run", uuid.NewString()).Logger()

	fixed, err := imaging.Load(*fixedPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load fixed image")
	}
	moving, err := imaging.Load(*movingPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load moving image")
	}
	log.Info().
		Str("fixed", *fixedPath).
		Int("fixed_width", fixed.Width).
		Int("fixed_height", fixed.Height).
		Str("moving", *movingPath).
		Int("moving_width", moving.Width).
		Int("moving_height", moving.Height).
		Msg("images loaded")

	pyr := cvops.NewPyramid()
	reg := registration.New(pyr, optimize.NewDescent(optimize.WithLogger(log)),
		registration.WithLogger(log),
		registration.WithChannel(*channel),
		registration.WithSeed(cfg.Seed))
	if err := cli.Apply(reg.Config(), cfg.Registration, sets); err != nil {
		log.Fatal().Err(err).Msg("invalid registration parameters")
	}

	initial := geometry.IdentitySimilarity()
	if *pointsPath != "" {
		opts := alignment.DefaultOptions()
		opts.Channel = *channel
		opts.Logger = log
		if p := reg.Config().Ints(registration.ParamCheckerPattern); len(p) == 2 {
			opts.CheckerPattern = [2]int{p[0], p[1]}
		}
		initial = initialize(log, fixed, moving, *pointsPath, pyr, opts, *initOut)
	}

	reg.SetFixed(fixed)
	reg.SetMoving(moving)
	reg.SetInitialTransform(initial)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	progress := make(chan registration.Progress, 16)
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := reg.Register(ctx, func(p registration.Progress) {
			progress <- p
		})
		close(progress)
		done <- outcome{res, err}
	}()

	for p := range progress {
		last := p.Len() - 1
		ev := log.Debug()
		if p.Iterations[last]%10 == 0 {
			ev = log.Info()
		}
		ev.Int("iteration", p.Iterations[last]).
			Int("level", p.Levels[last]).
			Float64("metric", p.Metrics[last]).
			Msg("progress")
	}

	o := <-done
	if o.err != nil {
		log.Fatal().Err(o.err).Stringer("state", reg.State()).Msg("registration failed")
	}
	res := o.result

	fmt.Printf("\n=== Final result ===\n")
	fmt.Printf("State: %s\n", res.State)
	fmt.Printf("Iterations: %d (%s)\n", res.Iterations, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Metric: %.6f\n", res.Metric)
	fmt.Printf("Scale: %.6f\n", res.Transform.Scale)
	fmt.Printf("Rotation: %.4f°\n", res.Transform.Angle*180/math.Pi)
	fmt.Printf("Translation: (%.2f, %.2f)\n", res.Transform.TX, res.Transform.TY)
	for i, l := range res.Levels {
		fmt.Printf("  level %d: %3d iterations, metric %.6f, stopped on %s\n", i, l.Iterations, l.Metric, l.Reason)
	}

	if *out != "" {
		if err := imaging.Save(*out, res.Checkerboard); err != nil {
			log.Fatal().Err(err).Msg("save checkerboard")
		}
		log.Info().Str("path", *out).Msg("checkerboard written")
	}
}

// initialize fits the keypoints and returns the resulting transform, writing
// the preview when previewPath is set.
func initialize(log zerolog.Logger, fixed, moving imaging.Image, pointsPath string, r alignment.Resampler, opts alignment.Options, previewPath string) geometry.Similarity {
	movingPts, fixedPts, err := alignment.LoadCorrespondences(pointsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load keypoints")
	}

	ini, err := alignment.Initialize(moving, fixed, movingPts, fixedPts, r, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("keypoint initialization failed")
	}
	log.Info().
		Int("points", len(movingPts)).
		Stringer("transform", ini.Transform()).
		Float64("mean_error", ini.Fit.MeanError).
		Msg("keypoint initialization")

	if previewPath != "" {
		if err := imaging.Save(previewPath, ini.Checkerboard); err != nil {
			log.Fatal().Err(err).Msg("save keypoint preview")
		}
	}
	return ini.Transform()
}
