package main

import (
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/dataset"
	"github.com/born-ml/gograd/internal/memory"
	"github.com/born-ml/gograd/internal/nn"
	"github.com/born-ml/gograd/internal/optim"
	"github.com/born-ml/gograd/internal/parallel"
	"github.com/born-ml/gograd/internal/serialization"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

func loadData(cfg config, src rand.Source) (*dataset.CSV, int, error) {
	if cfg.synthetic > 0 {
		return dataset.Blobs(cfg.synthetic, cfg.features, cfg.classes, 4, src), cfg.classes, nil
	}
	d, err := dataset.OpenCSV(cfg.data, dataset.Options{Header: cfg.header, MaxSamples: cfg.samples})
	if err != nil {
		return nil, 0, err
	}
	if cfg.scale {
		d.StandardScale()
	}
	return d, d.Classes(), nil
}

func newOptimizer(cfg config, params *nn.Params, alloc autodiff.TensorAllocator) (optim.Optimizer, string) {
	if cfg.adam {
		return optim.NewAdam(params, optim.AdamConfig{LR: cfg.lr}, alloc), "Adam"
	}
	return optim.NewSGD(params, optim.SGDConfig{
		LR:       cfg.lr,
		Momentum: cfg.momentum,
		Nesterov: cfg.nesterov,
	}, alloc), "SGD"
}

func run(cfg config, logger *slog.Logger) (err error) {
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed+1))

	d, classes, err := loadData(cfg, rng)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "rows", d.Rows, "features", d.Features, "classes", classes)

	poolCfg := memory.DefaultConfig()
	poolCfg.MaxBytes = cfg.maxBytes
	tensors := memory.NewTensorPool(poolCfg)
	graph := memory.NewGraphPool(memory.DefaultConfig())
	defer tensors.Close()
	defer graph.Close()
	allocs := autodiff.NewAllocators(tensors, graph)
	logger.Debug("kernels", "fast", tensor.FastKernels())

	model, err := newMLP(d.Features, cfg.hidden, classes, allocs, rng)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := model.release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if cfg.load != "" {
		ckpt, err := serialization.LoadFile(cfg.load)
		if err != nil {
			return err
		}
		if err := ckpt.LoadInto(model.named()); err != nil {
			return errors.Wrapf(err, "restore %s", cfg.load)
		}
		logger.Info("checkpoint restored", "path", cfg.load, "tensors", len(ckpt.Names()))
	}

	opt, optName := newOptimizer(cfg, &model.params, tensors)
	defer func() {
		if cerr := opt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	batch := dataset.NewBatch(cfg.batch)
	var (
		step int64
		loss float64
	)
	for epoch := 0; epoch < cfg.epochs; epoch++ {
		perm := dataset.NewPermutation(d.Rows, rng)
		for iteration := 0; !perm.Done(); iteration++ {
			k := min(perm.Remaining(), batch.Cap())
			if err := perm.Next(k, batch); err != nil {
				return err
			}
			loss, err = model.trainStep(d, batch.Indices(), opt)
			if err != nil {
				return errors.Wrapf(err, "epoch %d, iteration %d", epoch, iteration)
			}
			if cfg.logEvery > 0 && iteration%cfg.logEvery == 0 {
				logger.Info("train", "epoch", epoch, "iteration", iteration, "loss", loss)
			}
			perm.Advance(k)
			step++
		}

		evalLoss, acc, err := model.evaluate(d, cfg.batch, parallel.Config{Workers: cfg.workers, MinChunk: cfg.batch})
		if err != nil {
			return errors.Wrapf(err, "evaluate epoch %d", epoch)
		}
		logger.Info("epoch done", "epoch", epoch, "loss", evalLoss, "accuracy", acc)
		logPools(logger, tensors, graph)
	}

	if cfg.save != "" {
		header := serialization.Header{
			ModelType: "mlp",
			Metadata: map[string]string{
				"hidden":  strconv.Itoa(cfg.hidden),
				"classes": strconv.Itoa(classes),
			},
			CheckpointMeta: &serialization.CheckpointMeta{
				Epoch:         cfg.epochs,
				Step:          step,
				Loss:          loss,
				OptimizerType: optName,
				OptimizerConfig: map[string]float64{
					"lr":       cfg.lr,
					"momentum": cfg.momentum,
				},
			},
		}
		if err := serialization.SaveFile(cfg.save, model.named(), header); err != nil {
			return err
		}
		logger.Info("checkpoint saved", "path", cfg.save)
	}
	return nil
}

func logPools(logger *slog.Logger, tensors *memory.TensorPool, graph *memory.GraphPool) {
	logger.Info("pools", "tensor", tensors.Stats(), "graph", graph.Stats())
}
