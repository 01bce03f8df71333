package wcsbuild

import (
	"math"
	"testing"

	"obsingest/pkg/caom"
)

func TestRepairCoincidentCornersExpandToBeamBox(t *testing.T) {
	corners := Corners{{RA: 10, Dec: 20}, {RA: 10, Dec: 20}, {RA: 10, Dec: 20}, {RA: 10, Dec: 20}}
	poly, err := RepairFootprint(corners, 0.01)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if len(poly.Points) != 4 {
		t.Fatalf("expected 4 vertices, got %d", len(poly.Points))
	}
	wantDec := 0.01
	gotDec := poly.Points[2].Dec - poly.Points[1].Dec
	if math.Abs(gotDec-wantDec) > 1e-12 {
		t.Fatalf("box height %v, want %v", gotDec, wantDec)
	}
	wantRA := 0.01 / math.Cos(20*math.Pi/180)
	gotRA := poly.Points[1].RA - poly.Points[0].RA
	if math.Abs(gotRA-wantRA) > 1e-12 {
		t.Fatalf("box width %v, want %v", gotRA, wantRA)
	}
	// Centred on the recorded position.
	cRA := (poly.Points[0].RA + poly.Points[1].RA) / 2
	cDec := (poly.Points[0].Dec + poly.Points[2].Dec) / 2
	if math.Abs(cRA-10) > 1e-12 || math.Abs(cDec-20) > 1e-12 {
		t.Fatalf("box not centred: (%v, %v)", cRA, cDec)
	}
}

func TestRepairCollinearCornersExpandPerpendicular(t *testing.T) {
	t.Run("along ra", func(t *testing.T) {
		corners := Corners{{RA: 10, Dec: 20}, {RA: 10.1, Dec: 20}, {RA: 10.2, Dec: 20}, {RA: 10.3, Dec: 20}}
		poly, err := RepairFootprint(corners, 0.02)
		if err != nil {
			t.Fatalf("repair: %v", err)
		}
		if got := poly.Points[2].Dec - poly.Points[1].Dec; math.Abs(got-0.02) > 1e-12 {
			t.Fatalf("strip height %v, want 0.02", got)
		}
		if got := poly.Points[1].RA - poly.Points[0].RA; math.Abs(got-0.3) > 1e-12 {
			t.Fatalf("strip width %v, want 0.3", got)
		}
	})
	t.Run("along dec", func(t *testing.T) {
		corners := Corners{{RA: 10, Dec: 20}, {RA: 10, Dec: 20.1}, {RA: 10, Dec: 20.2}, {RA: 10, Dec: 20.3}}
		poly, err := RepairFootprint(corners, 0.02)
		if err != nil {
			t.Fatalf("repair: %v", err)
		}
		want := 0.02 / math.Cos(20.15*math.Pi/180)
		if got := poly.Points[1].RA - poly.Points[0].RA; math.Abs(got-want) > 1e-12 {
			t.Fatalf("strip width %v, want %v", got, want)
		}
	})
}

func TestRepairBowtieCorners(t *testing.T) {
	// Bottom-right and top-right were recorded swapped.
	corners := Corners{{RA: 0, Dec: 0}, {RA: 1, Dec: 1}, {RA: 1, Dec: 0}, {RA: 0, Dec: 1}}
	poly, err := RepairFootprint(corners, 0.01)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	simple, err := isSimple([4]caom.Point{poly.Points[0], poly.Points[1], poly.Points[2], poly.Points[3]})
	if err != nil || !simple {
		t.Fatalf("repaired polygon still self-intersects: %v %v", poly.Points, err)
	}
	// All four recorded corners must survive the reorder.
	seen := map[caom.Point]bool{}
	for _, p := range poly.Points {
		seen[p] = true
	}
	for _, p := range corners {
		if !seen[p] {
			t.Fatalf("corner %+v lost in repair", p)
		}
	}
}

func TestRepairSimplePolygonPassesThrough(t *testing.T) {
	corners := Corners{{RA: 0, Dec: 0}, {RA: 1, Dec: 0}, {RA: 1, Dec: 1}, {RA: 0, Dec: 1}}
	poly, err := RepairFootprint(corners, 0.01)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	for i, p := range poly.Points {
		if p != corners[i] {
			t.Fatalf("well-formed corners must not be reordered: %v", poly.Points)
		}
	}
}

func TestRepairDiagonalCollinearFails(t *testing.T) {
	corners := Corners{{RA: 0, Dec: 0}, {RA: 0.1, Dec: 0.1}, {RA: 0.2, Dec: 0.2}, {RA: 0.3, Dec: 0.3}}
	if _, err := RepairFootprint(corners, 0.01); err == nil {
		t.Fatal("diagonal collinear corners should not be repairable")
	}
}

func TestBeamSizes(t *testing.T) {
	beam, err := BeamHeterodyne(345.796)
	if err != nil {
		t.Fatalf("beam: %v", err)
	}
	if math.Abs(beam-1.435/345.796) > 1e-12 {
		t.Fatalf("unexpected heterodyne beam %v", beam)
	}
	beam, err = BeamContinuum(850)
	if err != nil {
		t.Fatalf("beam: %v", err)
	}
	if math.Abs(beam-4.787e-6*850) > 1e-15 {
		t.Fatalf("unexpected continuum beam %v", beam)
	}
	if _, err := BeamHeterodyne(0); err == nil {
		t.Fatal("zero frequency should fail")
	}
}
