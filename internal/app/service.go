package app

import (
	"time"

	"python-buildpack/internal/adapters"
	"python-buildpack/internal/policies"
	"python-buildpack/internal/ports"
	"python-buildpack/internal/shared"
)

type Service struct {
	AppDir     string
	LayersDir  string
	Catalog    ports.ReleaseCatalogPort
	Layers     ports.LayerStorePort
	Project    ports.ProjectFilesPort
	Runner     ports.CommandRunnerPort
	Downloader ports.DownloaderPort
	Compiler   ports.BytecodeCompilerPort
	SBOMWriter ports.SBOMPort
	Managers   policies.PackageManagerPolicy
	// Retry bounds package manager invocations that fail on the network.
	Retry shared.RetryPolicy
	Clock func() time.Time
}

type ServiceConfig struct {
	AppDir         string
	LayersDir      string
	HTTPTimeoutSec int
	Retries        int
	RetryDelayMs   int
	CompileWorkers int
}

func NewService(cfg ServiceConfig) Service {
	runner := adapters.NewCommandRunnerAdapter()
	return Service{
		AppDir:     cfg.AppDir,
		LayersDir:  cfg.LayersDir,
		Catalog:    adapters.NewReleaseCatalogAdapter(),
		Layers:     adapters.NewLayerStoreAdapter(cfg.LayersDir),
		Project:    adapters.NewProjectFilesAdapter(cfg.AppDir),
		Runner:     runner,
		Downloader: adapters.NewDownloaderAdapter(cfg.HTTPTimeoutSec, cfg.Retries, cfg.RetryDelayMs),
		Compiler:   adapters.NewBytecodeCompilerAdapter(runner, cfg.CompileWorkers),
		SBOMWriter: adapters.NewSBOMWriterAdapter(),
		Managers:   policies.NewPackageManagerPolicy(),
		Retry:      shared.NewRetryPolicy(cfg.Retries, cfg.RetryDelayMs),
		Clock:      time.Now,
	}
}
