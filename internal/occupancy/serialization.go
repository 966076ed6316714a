package occupancy

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/geometry"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

const (
	gridMagic         = "VGTOGRID"
	gridFormatVersion = 1

	// Frame labels longer than this indicate a corrupt stream, not a real
	// frame name.
	maxFrameLen = 1 << 20
)

// gridHeader is the fixed-size leading section of the wire format. All
// multi-byte fields are little-endian.
type gridHeader struct {
	Magic     [8]byte
	Version   uint32
	Origin    [16]float64
	CellSizes [3]float64
	Counts    [3]int64
	Default   PackedCell
	OOB       PackedCell
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// PackCells snapshots every cell in storage order into the packed 8-byte
// layout.
func (g *Grid) PackCells() []PackedCell {
	out := make([]PackedCell, len(g.cells))
	for i := range g.cells {
		out[i] = PackCellState(g.cells[i].Load())
	}
	return out
}

// UnpackCells stores packed cells back into the grid in storage order. The
// slice length must match the grid's cell count. Components are invalidated.
func (g *Grid) UnpackCells(cells []PackedCell) error {
	if int64(len(cells)) != g.TotalCells() {
		return fmt.Errorf("packed cell count %d does not match grid cell count %d",
			len(cells), g.TotalCells())
	}
	for i := range cells {
		g.cells[i].Store(cells[i].State())
	}
	g.componentsValid.Store(false)
	return nil
}

// Serialize writes the grid to w and returns the number of bytes written.
// The format is self-describing and re-serializing an unchanged grid yields
// identical bytes.
func (g *Grid) Serialize(w io.Writer) (int64, error) {
	if !g.IsInitialized() {
		return 0, errors.New("cannot serialize an uninitialized grid")
	}
	cw := &countingWriter{w: w}

	hdr := gridHeader{
		Version:   gridFormatVersion,
		Origin:    g.origin.T,
		CellSizes: [3]float64{g.sizes.CellXSize, g.sizes.CellYSize, g.sizes.CellZSize},
		Counts:    [3]int64{int64(g.sizes.NumXCells), int64(g.sizes.NumYCells), int64(g.sizes.NumZCells)},
		Default:   PackCellState(g.defaultState),
		OOB:       PackCellState(g.oobState),
	}
	copy(hdr.Magic[:], gridMagic)
	if err := binary.Write(cw, binary.LittleEndian, hdr); err != nil {
		return cw.n, fmt.Errorf("write grid header: %w", err)
	}

	frame := []byte(g.frame)
	if err := binary.Write(cw, binary.LittleEndian, uint32(len(frame))); err != nil {
		return cw.n, fmt.Errorf("write frame length: %w", err)
	}
	if _, err := cw.Write(frame); err != nil {
		return cw.n, fmt.Errorf("write frame: %w", err)
	}

	var valid uint8
	if g.componentsValid.Load() {
		valid = 1
	}
	if err := binary.Write(cw, binary.LittleEndian, valid); err != nil {
		return cw.n, fmt.Errorf("write components flag: %w", err)
	}
	if err := binary.Write(cw, binary.LittleEndian, g.numComponents.Load()); err != nil {
		return cw.n, fmt.Errorf("write component count: %w", err)
	}

	packed := g.PackCells()
	if err := binary.Write(cw, binary.LittleEndian, int64(len(packed))); err != nil {
		return cw.n, fmt.Errorf("write cell count: %w", err)
	}
	if err := binary.Write(cw, binary.LittleEndian, packed); err != nil {
		return cw.n, fmt.Errorf("write cells: %w", err)
	}
	return cw.n, nil
}

// Deserialize reads a grid from r and returns it along with the number of
// bytes consumed.
func Deserialize(r io.Reader) (*Grid, int64, error) {
	cr := &countingReader{r: r}

	var hdr gridHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, cr.n, fmt.Errorf("read grid header: %w", err)
	}
	if string(hdr.Magic[:]) != gridMagic {
		return nil, cr.n, fmt.Errorf("bad grid magic %q", hdr.Magic)
	}
	if hdr.Version != gridFormatVersion {
		return nil, cr.n, fmt.Errorf("unsupported grid format version %d", hdr.Version)
	}

	var frameLen uint32
	if err := binary.Read(cr, binary.LittleEndian, &frameLen); err != nil {
		return nil, cr.n, fmt.Errorf("read frame length: %w", err)
	}
	if frameLen > maxFrameLen {
		return nil, cr.n, fmt.Errorf("implausible frame length %d", frameLen)
	}
	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(cr, frame); err != nil {
		return nil, cr.n, fmt.Errorf("read frame: %w", err)
	}

	var valid uint8
	if err := binary.Read(cr, binary.LittleEndian, &valid); err != nil {
		return nil, cr.n, fmt.Errorf("read components flag: %w", err)
	}
	var numComponents uint32
	if err := binary.Read(cr, binary.LittleEndian, &numComponents); err != nil {
		return nil, cr.n, fmt.Errorf("read component count: %w", err)
	}

	sizes, err := voxelgrid.NewSizes(
		hdr.CellSizes[0], hdr.CellSizes[1], hdr.CellSizes[2],
		int(hdr.Counts[0]), int(hdr.Counts[1]), int(hdr.Counts[2]))
	if err != nil {
		return nil, cr.n, fmt.Errorf("invalid serialized sizes: %w", err)
	}
	g, err := NewWithOOB(geometry.Pose{T: hdr.Origin}, string(frame), sizes,
		hdr.Default.State(), hdr.OOB.State())
	if err != nil {
		return nil, cr.n, fmt.Errorf("rebuild grid: %w", err)
	}

	var numCells int64
	if err := binary.Read(cr, binary.LittleEndian, &numCells); err != nil {
		return nil, cr.n, fmt.Errorf("read cell count: %w", err)
	}
	if numCells != g.TotalCells() {
		return nil, cr.n, fmt.Errorf("serialized cell count %d does not match sizes (%d cells)",
			numCells, g.TotalCells())
	}
	packed := make([]PackedCell, numCells)
	if err := binary.Read(cr, binary.LittleEndian, packed); err != nil {
		return nil, cr.n, fmt.Errorf("read cells: %w", err)
	}
	if err := g.UnpackCells(packed); err != nil {
		return nil, cr.n, err
	}

	g.numComponents.Store(numComponents)
	if valid == 1 {
		g.componentsValid.Store(true)
	}
	return g, cr.n, nil
}

// SaveToFile writes the grid to path, gzip-compressed when compress is set.
func (g *Grid) SaveToFile(path string, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create grid file: %w", err)
	}
	var w io.Writer = f
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		w = gz
	}
	if _, err := g.Serialize(w); err != nil {
		f.Close()
		return fmt.Errorf("serialize grid: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("flush compressed grid: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close grid file: %w", err)
	}
	return nil
}

// LoadFromFile reads a grid written by SaveToFile, sniffing for gzip.
func LoadFromFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open compressed grid: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	g, _, err := Deserialize(r)
	if err != nil {
		return nil, fmt.Errorf("deserialize grid %s: %w", path, err)
	}
	return g, nil
}
