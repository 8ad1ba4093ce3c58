package ports

import (
	"context"

	"python-buildpack/internal/types"
)

type CommandRunnerPort interface {
	Run(ctx context.Context, cmd types.Command, env types.Environment) (types.CommandResult, error)
}

type DownloaderPort interface {
	// FetchArchive downloads url and unpacks it into dest, dropping the
	// first strip path components of every entry.
	FetchArchive(ctx context.Context, url string, format types.ArchiveFormat, dest string, strip int) error
}

type BytecodeCompilerPort interface {
	// Compile byte-compiles every .py file under root with python and
	// returns the number of files compiled.
	Compile(ctx context.Context, python string, root string, env types.Environment) (int, error)
}
