package task

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/GoSim-25-26J-441/annealing-core/internal/artifact"
	"github.com/GoSim-25-26J-441/annealing-core/internal/stage"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
)

// InputFiles returns the files the simulator needs in its work directory, except the
// parent's restart files. Paths are slash separated.
func InputFiles(in Input) (map[string][]byte, error) {
	if in.Document == nil || in.Structure == nil {
		return nil, fmt.Errorf("stage %s: document and structure are required", in.Label)
	}
	cif, err := structure.CIFBytes(in.Structure)
	if err != nil {
		return nil, fmt.Errorf("stage %s: render framework: %w", in.Label, err)
	}
	files := map[string][]byte{
		InputFile:                      []byte(PrepareDocument(in).Render()),
		stage.FrameworkSystem + ".cif": cif,
	}
	for name, content := range in.ForceField {
		files[name] = []byte(content)
	}
	if len(in.BlockPocket) > 0 {
		files[BlockPocketFile] = in.BlockPocket
	}
	return files, nil
}

// ParentRestartFiles fetches the restart files of a parent artifact, keyed by the
// path they take in the child's work directory.
func ParentRestartFiles(ctx context.Context, store artifact.Store, parent string) (map[string][]byte, error) {
	names, err := artifact.ListDir(ctx, store, parent, RestartDir)
	if err != nil {
		return nil, fmt.Errorf("list restart files of %s: %w", parent, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("artifact %s has no restart files", parent)
	}
	out := make(map[string][]byte, len(names))
	for _, name := range names {
		data, err := store.Get(ctx, parent, path.Join(RestartDir, name))
		if err != nil {
			return nil, err
		}
		out[path.Join(RestartInitialDir, name)] = data
	}
	return out, nil
}

func writeFiles(dir string, files map[string][]byte) error {
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, content, 0o644); err != nil {
			return err
		}
	}
	return nil
}
