package geom

// Mesh is a row-major grid of source image coordinates. Row r is a
// horizontal band of the flattened page and column c a vertical band;
// Mesh.At(r, c) is where output pixel (c, r) is sampled from.
type Mesh struct {
	Rows, Cols int
	Points     []Point
}

func NewMesh(rows, cols int) *Mesh {
	return &Mesh{Rows: rows, Cols: cols, Points: make([]Point, rows*cols)}
}

func (m *Mesh) At(r, c int) Point     { return m.Points[r*m.Cols+c] }
func (m *Mesh) Set(r, c int, p Point) { m.Points[r*m.Cols+c] = p }
func (m *Mesh) Row(r int) []Point     { return m.Points[r*m.Cols : (r+1)*m.Cols] }
func (m *Mesh) Empty() bool           { return m == nil || m.Rows == 0 || m.Cols == 0 }
func (m *Mesh) Bounds() Crop          { return CropFromPoints(m.Points) }

// ReverseCols mirrors the mesh left to right.
func (m *Mesh) ReverseCols() {
	for r := 0; r < m.Rows; r++ {
		row := m.Row(r)
		for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
}

// ReverseRows mirrors the mesh top to bottom.
func (m *Mesh) ReverseRows() {
	for i, j := 0, m.Rows-1; i < j; i, j = i+1, j-1 {
		a, b := m.Row(i), m.Row(j)
		for c := range a {
			a[c], b[c] = b[c], a[c]
		}
	}
}

// Orient reverses columns and rows as needed so the mesh runs left to
// right and top to bottom in image space. It reports what it flipped.
func (m *Mesh) Orient() (flippedCols, flippedRows bool) {
	if m.Empty() {
		return false, false
	}
	var first, last float64
	for r := 0; r < m.Rows; r++ {
		first += m.At(r, 0).X
		last += m.At(r, m.Cols-1).X
	}
	if first > last {
		m.ReverseCols()
		flippedCols = true
	}

	first, last = 0, 0
	for c := 0; c < m.Cols; c++ {
		first += m.At(0, c).Y
		last += m.At(m.Rows-1, c).Y
	}
	if first > last {
		m.ReverseRows()
		flippedRows = true
	}
	return flippedCols, flippedRows
}
