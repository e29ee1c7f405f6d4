package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/interface.report/internal/surface"
)

// maxInputSize bounds the trajectory documents read by the CLI.
const maxInputSize = 1 << 30

// inputDoc is the JSON trajectory format: one cell shared by every frame
// and the already extracted molecular centres of each frame.
type inputDoc struct {
	Cell   []float64    `json:"cell"`
	Frames []inputFrame `json:"frames"`
}

type inputFrame struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	Z []float64 `json:"z"`
}

func readInput(path string) ([]*surface.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	frames, err := decodeInput(io.LimitReader(f, maxInputSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

func decodeInput(r io.Reader) ([]*surface.Frame, error) {
	var doc inputDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse input JSON: %w", err)
	}
	if len(doc.Cell) != 3 {
		return nil, fmt.Errorf("cell must have 3 dimensions, got %d", len(doc.Cell))
	}
	if len(doc.Frames) == 0 {
		return nil, fmt.Errorf("input contains no frames")
	}

	cell := surface.Cell{Lx: doc.Cell[0], Ly: doc.Cell[1], Lz: doc.Cell[2]}
	frames := make([]*surface.Frame, len(doc.Frames))
	for i, in := range doc.Frames {
		f := &surface.Frame{X: in.X, Y: in.Y, Z: in.Z, Cell: cell}
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames[i] = f
	}
	return frames, nil
}
