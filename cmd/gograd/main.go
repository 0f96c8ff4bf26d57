// Package main provides the gograd training CLI.
//
// It trains a two-layer perceptron (Linear -> ReLU -> Linear) with a
// cross-entropy loss on a labelled CSV file, or on generated clusters when
// -synthetic is set.
//
// Usage:
//
//	gograd -data mnist_train.csv -header -epochs 1 -batch 64 -hidden 512
//	gograd -synthetic 2000 -classes 4 -features 8 -save model.ggrd
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/pkg/errors"
)

const version = "v0.1.0"

// config holds the command-line settings.
type config struct {
	data     string
	header   bool
	scale    bool
	samples  int
	epochs   int
	batch    int
	hidden   int
	lr       float64
	momentum float64
	nesterov bool
	adam     bool
	seed     uint64
	logEvery int
	maxBytes int
	workers  int
	load     string
	save     string

	synthetic int
	features  int
	classes   int
}

func parseFlags(args []string) (config, slog.Level, error) {
	var cfg config
	var verbose, showVersion bool

	fs := flag.NewFlagSet("gograd", flag.ContinueOnError)
	fs.StringVar(&cfg.data, "data", "", "training CSV (label first, features after)")
	fs.BoolVar(&cfg.header, "header", false, "skip the first CSV record")
	fs.BoolVar(&cfg.scale, "scale", true, "standardise features to zero mean and unit variance")
	fs.IntVar(&cfg.samples, "samples", 0, "maximum rows to load (0 = all)")
	fs.IntVar(&cfg.epochs, "epochs", 1, "passes over the training set")
	fs.IntVar(&cfg.batch, "batch", 64, "mini-batch size")
	fs.IntVar(&cfg.hidden, "hidden", 512, "hidden layer width")
	fs.Float64Var(&cfg.lr, "lr", 3e-4, "learning rate")
	fs.Float64Var(&cfg.momentum, "momentum", 0.9, "SGD momentum")
	fs.BoolVar(&cfg.nesterov, "nesterov", false, "use Nesterov momentum")
	fs.BoolVar(&cfg.adam, "adam", false, "use Adam instead of SGD")
	fs.Uint64Var(&cfg.seed, "seed", 42, "seed for initialisation and shuffling")
	fs.IntVar(&cfg.logEvery, "log-every", 100, "log the loss every N iterations")
	fs.IntVar(&cfg.maxBytes, "max-bytes", 0, "tensor pool memory limit in bytes (0 = unlimited)")
	fs.IntVar(&cfg.workers, "workers", runtime.NumCPU(), "goroutines used for evaluation")
	fs.StringVar(&cfg.load, "load", "", "checkpoint to initialise the model from")
	fs.StringVar(&cfg.save, "save", "", "write a checkpoint here after training")
	fs.IntVar(&cfg.synthetic, "synthetic", 0, "train on N generated rows instead of -data")
	fs.IntVar(&cfg.features, "features", 8, "feature count for -synthetic")
	fs.IntVar(&cfg.classes, "classes", 4, "class count for -synthetic")
	fs.BoolVar(&verbose, "v", false, "debug logging")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, 0, err
	}
	if showVersion {
		fmt.Printf("gograd %s\n", version)
		os.Exit(0)
	}
	if cfg.data == "" && cfg.synthetic == 0 {
		return cfg, 0, errors.New("one of -data or -synthetic is required")
	}
	if cfg.batch <= 0 || cfg.hidden <= 0 || cfg.epochs < 0 {
		return cfg, 0, errors.New("-batch and -hidden must be positive, -epochs non-negative")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return cfg, level, nil
}

func main() {
	cfg, level, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if err := run(cfg, logger); err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}
}
