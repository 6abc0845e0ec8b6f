package component

import (
	"testing"

	"github.com/MacJediWizard/shotsweep/internal/ftrack"
)

func TestIdentify(t *testing.T) {
	cases := []struct {
		name      string
		component ftrack.Component
		want      Role
	}{
		{"review high", ftrack.Component{Name: "ftrackreview-mp4-1080", FileType: ".mp4"}, RoleEncodedHigh},
		{"review low", ftrack.Component{Name: "ftrackreview-mp4", FileType: ".mp4"}, RoleEncodedLow},
		{"image by file type", ftrack.Component{Name: "thumbnail", FileType: ".jpg"}, RoleImage},
		{"image by name extension", ftrack.Component{Name: "frame.0001.exr"}, RoleImage},
		{"original movie", ftrack.Component{Name: "sh010_comp_v003", FileType: ".mov"}, RoleOriginal},
		{"original by name extension", ftrack.Component{Name: "plate.mxf"}, RoleOriginal},
		{"review image stays image", ftrack.Component{Name: "ftrackreview-image", FileType: ".jpg"}, RoleImage},
		{"video named like review is not original", ftrack.Component{Name: "ftrackreview-extra", FileType: ".mov"}, RoleOther},
		{"unknown", ftrack.Component{Name: "metadata", FileType: ".xml"}, RoleOther},
		{"empty", ftrack.Component{}, RoleOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Identify(tc.component); got != tc.want {
				t.Errorf("Identify(%+v) = %v, want %v", tc.component, got, tc.want)
			}
		})
	}
}

func TestFindBest(t *testing.T) {
	original := ftrack.Component{ID: "o", Name: "plate_v001", FileType: ".mov", Size: 5000}
	encodedHigh := ftrack.Component{ID: "h", Name: "ftrackreview-mp4-1080", FileType: ".mp4", Size: 900}
	encodedLow := ftrack.Component{ID: "l", Name: "ftrackreview-mp4", FileType: ".mp4", Size: 300}
	image := ftrack.Component{ID: "i", Name: "still.png", FileType: ".png", Size: 50}

	t.Run("no components", func(t *testing.T) {
		if got := FindBest(nil, PreferOriginal); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("original preference picks original over encoded", func(t *testing.T) {
		got := FindBest([]ftrack.Component{encodedHigh, original}, PreferOriginal)
		if got == nil || got.ID != "o" {
			t.Errorf("expected original, got %+v", got)
		}
	})

	t.Run("original preference falls back to encoded-high", func(t *testing.T) {
		got := FindBest([]ftrack.Component{image, encodedLow, encodedHigh}, PreferOriginal)
		if got == nil || got.ID != "h" {
			t.Errorf("expected encoded-high, got %+v", got)
		}
	})

	t.Run("encoded preference favors encoded-high", func(t *testing.T) {
		got := FindBest([]ftrack.Component{original, encodedHigh, encodedLow}, PreferEncoded)
		if got == nil || got.ID != "h" {
			t.Errorf("expected encoded-high, got %+v", got)
		}
	})

	t.Run("encoded preference falls back through image to original", func(t *testing.T) {
		got := FindBest([]ftrack.Component{original}, PreferEncoded)
		if got == nil || got.ID != "o" {
			t.Errorf("expected original, got %+v", got)
		}
	})

	t.Run("largest by size within a role wins", func(t *testing.T) {
		small := ftrack.Component{ID: "s", Name: "a.mov", FileType: ".mov", Size: 100}
		big := ftrack.Component{ID: "b", Name: "b.mov", FileType: ".mov", Size: 200}
		got := FindBest([]ftrack.Component{small, big}, PreferOriginal)
		if got == nil || got.ID != "b" {
			t.Errorf("expected largest original, got %+v", got)
		}
	})

	t.Run("chain exhausted falls back to largest overall", func(t *testing.T) {
		other := ftrack.Component{ID: "x", Name: "metadata", FileType: ".xml", Size: 10}
		got := FindBest([]ftrack.Component{other}, PreferOriginal)
		if got == nil || got.ID != "x" {
			t.Errorf("expected fallback to remaining component, got %+v", got)
		}
	})
}
