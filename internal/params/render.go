package params

import (
	"bufio"
	"io"
	"sort"
	"strings"
)

const (
	blockOpen      = "%"
	blockClose     = "%"
	fieldSeparator = " | "
)

// Render converts a parameter set into input-file lines. Keys are emitted in
// sorted order so identical sets always render identically.
func Render(set map[string]Value) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, key := range keys {
		lines = appendEntry(lines, key, set[key])
	}
	return lines
}

func appendEntry(lines []string, key string, v Value) []string {
	switch v.Kind() {
	case KindFlat:
		lines = append(lines, blockOpen+key)
		for _, item := range v.Items() {
			lines = append(lines, assignment(key, item))
		}
		return append(lines, blockClose)

	case KindNested:
		lines = append(lines, blockOpen+key)
		for _, row := range v.Rows() {
			if len(row) == 1 {
				lines = append(lines, assignment(key, row[0]))
				continue
			}
			fields := make([]string, len(row))
			for i, f := range row {
				fields[i] = f.String()
			}
			lines = append(lines, " "+strings.Join(fields, fieldSeparator))
		}
		return append(lines, blockClose)

	default:
		s, _ := v.Scalar()
		return append(lines, assignment(key, s))
	}
}

func assignment(key string, s Scalar) string {
	return key + " = " + s.String()
}

// WriteTo writes the rendered model to w, one newline-terminated line per
// entry line.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, line := range m.Lines() {
		c, err := bw.WriteString(line + "\n")
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
