package density

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// CubeHeaderLines is the number of header lines skipped in a cube file.
	CubeHeaderLines = 7

	// AxisHeaderLines is the number of header lines skipped in an axis file.
	AxisHeaderLines = 1
)

// File names relative to the calculation's static directory.
const (
	CubeFile = "density.cube"
	AxisFile = "density.y=0,z=0"
)

// Requested reports whether the Output setting asks for the density, i.e.
// one of its "+"-separated components is "density".
func Requested(output string) bool {
	for _, part := range strings.Split(output, "+") {
		if strings.TrimSpace(part) == "density" {
			return true
		}
	}
	return false
}

// LoadCube reads a cube file and reshapes its values into a dims-dimensional
// grid.
func LoadCube(r io.Reader, dims int) (*Field, error) {
	br := bufio.NewReader(r)
	if err := skipLines(br, CubeHeaderLines); err != nil {
		return nil, fmt.Errorf("density: cube header: %w", err)
	}

	var values []float64
	scanner := bufio.NewScanner(br)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("density: cube value %d: %w", len(values), err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return Reshape(values, dims)
}

// LoadAxis reads a whitespace-separated column file and returns its second
// column as a 1-D field. Blank lines and lines starting with '#' are skipped.
func LoadAxis(r io.Reader) (*Field, error) {
	br := bufio.NewReader(r)
	if err := skipLines(br, AxisHeaderLines); err != nil {
		return nil, fmt.Errorf("density: axis header: %w", err)
	}

	var values []float64
	scanner := bufio.NewScanner(br)
	row := AxisHeaderLines
	for scanner.Scan() {
		row++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("density: axis line %d: want at least 2 columns, got %d", row, len(fields))
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("density: axis line %d: %w", row, err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewField(values, []int{len(values)})
}

// Load reads the density file matching outputHow from staticDir.
func Load(staticDir, outputHow string, dims int) (*Field, error) {
	name := AxisFile
	if outputHow == "cube" {
		name = CubeFile
	}
	f, err := os.Open(filepath.Join(staticDir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if outputHow == "cube" {
		return LoadCube(f, dims)
	}
	return LoadAxis(f)
}

func skipLines(br *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return fmt.Errorf("file ends after %d of %d header lines", i, n)
			}
			return err
		}
	}
	return nil
}
