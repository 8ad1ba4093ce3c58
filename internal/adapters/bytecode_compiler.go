package adapters

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"python-buildpack/internal/ports"
	"python-buildpack/internal/shared"
	"python-buildpack/internal/types"
)

const defaultCompileBatchSize = 200

// BytecodeCompilerAdapter fans compileall runs out over a bounded pool.
type BytecodeCompilerAdapter struct {
	Runner    ports.CommandRunnerPort
	Workers   int
	BatchSize int
}

func NewBytecodeCompilerAdapter(runner ports.CommandRunnerPort, workers int) BytecodeCompilerAdapter {
	return BytecodeCompilerAdapter{
		Runner:    runner,
		Workers:   normalizeCompileWorkers(workers),
		BatchSize: defaultCompileBatchSize,
	}
}

func normalizeCompileWorkers(value int) int {
	if value <= 0 {
		return runtime.NumCPU()
	}
	return value
}

// Compile writes bytecode for every source under root and returns how
// many files compiled. Sources with syntax errors are skipped with a
// warning; the build fails only when the interpreter itself fails.
func (a BytecodeCompilerAdapter) Compile(ctx context.Context, python string, root string, env types.Environment) (int, error) {
	files, err := collectPythonSources(root)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}
	batches := splitBatches(files, a.BatchSize)
	skipped := make([][]string, len(batches))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(normalizeCompileWorkers(a.Workers))
	for idx, batch := range batches {
		group.Go(func() error {
			failed, err := a.compileBatch(groupCtx, python, batch, env)
			skipped[idx] = failed
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	compiled := len(files)
	for _, failed := range skipped {
		for _, file := range failed {
			log.Ctx(ctx).Warn().Str("file", file).Msg("skipped bytecode for a file that does not compile")
		}
		compiled -= len(failed)
	}
	log.Ctx(ctx).Debug().Int("files", compiled).Int("batches", len(batches)).Msg("bytecode compiled")
	return compiled, nil
}

var compileErrorLine = regexp.MustCompile(`^\*\*\* Error compiling '(.+)'\.\.\.`)

// compileBatch returns the files compileall reported as broken. A failed
// run without such a report means the interpreter could not do its job.
func (a BytecodeCompilerAdapter) compileBatch(ctx context.Context, python string, files []string, env types.Environment) ([]string, error) {
	args := append([]string{"-m", "compileall", "-q", "--invalidation-mode", "checked-hash", "--"}, files...)
	result, err := a.Runner.Run(ctx, types.Command{
		Name:    python,
		Args:    args,
		Capture: true,
	}, env)
	if err == nil {
		return nil, nil
	}
	if ctx.Err() == nil && result.ExitCode > 0 {
		var failed []string
		for _, line := range strings.Split(result.Stdout, "\n") {
			if match := compileErrorLine.FindStringSubmatch(strings.TrimSpace(line)); match != nil {
				failed = append(failed, match[1])
			}
		}
		if len(failed) > 0 {
			return failed, nil
		}
	}
	detail := strings.TrimSpace(shared.Tail(result.Stdout, 20))
	if detail == "" {
		detail = result.StderrTail
	}
	return nil, types.NewBuildError(types.ErrorKindSubprocess, types.ReasonCompileFailed,
		errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to compile Python bytecode:\n%s", detail)).
			WithCause(err))
}

func collectPythonSources(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), ".py") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, types.NewBuildError(types.ErrorKindLayerIO, "",
			errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to scan for Python sources").
				WithCause(err))
	}
	sort.Strings(files)
	return files, nil
}

func splitBatches(files []string, size int) [][]string {
	if size <= 0 {
		size = defaultCompileBatchSize
	}
	var batches [][]string
	for start := 0; start < len(files); start += size {
		end := start + size
		if end > len(files) {
			end = len(files)
		}
		batches = append(batches, files[start:end])
	}
	return batches
}

var _ ports.BytecodeCompilerPort = BytecodeCompilerAdapter{}
