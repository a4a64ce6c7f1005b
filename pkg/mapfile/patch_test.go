package mapfile

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// flatPatch returns a patch in the z=0 plane with evenly spaced control points,
// which makes the surface linear.
func flatPatch(rows, cols int, spacing float32) *Patch {
	p := &Patch{Height: rows, Width: cols}
	p.ControlPoints = make([][]PatchVert, rows)
	for i := range p.ControlPoints {
		p.ControlPoints[i] = make([]PatchVert, cols)
		for j := range p.ControlPoints[i] {
			p.ControlPoints[i][j] = PatchVert{
				Position: mgl32.Vec3{float32(j) * spacing, float32(i) * spacing, 0},
				UV:       mgl32.Vec2{float32(j) / float32(cols-1), float32(i) / float32(rows-1)},
			}
		}
	}
	return p
}

func TestSubdivisions(t *testing.T) {
	for _, test := range []struct {
		rows, cols int
		spacing    float32
		want       int
	}{
		{3, 3, 1, 1},   // Diagonal 2.8.
		{3, 3, 10, 2},  // 28.
		{3, 3, 15, 4},  // 42.
		{3, 3, 32, 5},  // 90.
		{5, 9, 64, 5},  // Way over.
		{3, 3, 0, 1},   // All in one point.
		{1, 3, 10, 0},  // Not a patch.
	} {
		p := flatPatch(test.rows, test.cols, test.spacing)
		if got := p.Subdivisions(); got != test.want {
			t.Errorf("%dx%d spacing %v: got %d, want %d", test.rows, test.cols, test.spacing, got, test.want)
		}
	}
}

func TestPatchGrid(t *testing.T) {
	for _, test := range []struct {
		rows, cols int
		spacing    float32
		wantRows   int
		wantCols   int
	}{
		{3, 3, 32, 6, 6},
		{5, 3, 32, 11, 6},
		{3, 7, 32, 6, 16},
		{3, 3, 1, 2, 2},
		{5, 5, 5, 5, 5}, // Diagonal 28, so N=2.
	} {
		p := flatPatch(test.rows, test.cols, test.spacing)
		p.CalculateGeometry()
		if got := len(p.Vertices); got != test.wantRows {
			t.Errorf("%dx%d rows: got %d, want %d", test.rows, test.cols, got, test.wantRows)
			continue
		}
		for i, row := range p.Vertices {
			if got := len(row); got != test.wantCols {
				t.Errorf("%dx%d row %d columns: got %d, want %d", test.rows, test.cols, i, got, test.wantCols)
			}
		}

		// Corners are the control grid corners.
		lastRow, lastCol := len(p.Vertices)-1, len(p.Vertices[0])-1
		cpRow, cpCol := test.rows-1, test.cols-1
		for _, c := range [][4]int{
			{0, 0, 0, 0},
			{0, lastCol, 0, cpCol},
			{lastRow, 0, cpRow, 0},
			{lastRow, lastCol, cpRow, cpCol},
		} {
			got := p.Vertices[c[0]][c[1]]
			want := p.ControlPoints[c[2]][c[3]]
			if !got.Position.ApproxEqualThreshold(want.Position, epsilon) || !got.UV.ApproxEqualThreshold(want.UV, epsilon) {
				t.Errorf("%dx%d corner %v: got %+v, want %+v", test.rows, test.cols, c, got, want)
			}
		}

		// The surface is linear, so every sample is evenly spaced, including
		// across sub-patch seams.
		w := float32(cpCol) * test.spacing
		h := float32(cpRow) * test.spacing
		for i, row := range p.Vertices {
			for j, v := range row {
				want := mgl32.Vec3{w * float32(j) / float32(lastCol), h * float32(i) / float32(lastRow), 0}
				if !v.Position.ApproxEqualThreshold(want, 1e-3) {
					t.Errorf("%dx%d vertex %d,%d: got %v, want %v", test.rows, test.cols, i, j, v.Position, want)
				}
				if !v.Normal.ApproxEqualThreshold(mgl32.Vec3{0, 0, 1}, 1e-3) {
					t.Errorf("%dx%d normal %d,%d: got %v, want +z", test.rows, test.cols, i, j, v.Normal)
				}
			}
		}
	}
}

func TestPatchCurve(t *testing.T) {
	// Middle control point raised: the surface peaks at half the control height.
	p := flatPatch(3, 3, 10)
	p.ControlPoints[1][1].Position[2] = 64
	p.CalculateGeometry()
	if got, want := len(p.Vertices), 3; got != want {
		t.Fatalf("Rows: got %d, want %d", got, want)
	}
	if got, want := p.Vertices[1][1].Position[2], float32(16); mgl32.Abs(got-want) > epsilon {
		t.Errorf("Peak: got %v, want %v", got, want)
	}
	for i, row := range p.Vertices {
		for j, v := range row {
			if l := v.Normal.Len(); mgl32.Abs(l-1) > 1e-3 {
				t.Errorf("Normal %d,%d length: got %v, want 1", i, j, l)
			}
			if v.Normal[2] <= 0 {
				t.Errorf("Normal %d,%d %v points down", i, j, v.Normal)
			}
		}
	}
}

func TestDegeneratePatch(t *testing.T) {
	for _, p := range []*Patch{
		{},
		flatPatch(1, 3, 10),
		flatPatch(3, 1, 10),
	} {
		p.CalculateGeometry()
		if p.Vertices != nil {
			t.Errorf("%dx%d patch got vertices", p.Height, p.Width)
		}
	}
}
