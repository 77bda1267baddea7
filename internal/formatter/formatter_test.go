package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
	tu "github.com/desertthunder/massctl/internal/testing"
)

func sampleTracks() []models.Track {
	return []models.Track{
		{
			MediaItem: models.MediaItem{ItemID: "t1", Provider: "library", Name: "Song One", Favorite: true},
			Duration:  180,
			Artists:   []models.ItemRef{{Name: "Artist One"}, {Name: "Guest"}},
			Album:     &models.ItemRef{Name: "Album One"},
		},
		{
			MediaItem: models.MediaItem{ItemID: "t2", Provider: "spotify", Name: "Song, Two"},
			Duration:  3725,
			Artists:   []models.ItemRef{{Name: "Artist Two"}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tt := []struct {
		input string
		want  Format
	}{
		{input: "", want: Text},
		{input: "txt", want: Text},
		{input: "MD", want: Markdown},
		{input: " csv ", want: CSV},
		{input: "json", want: JSON},
	}
	for _, tc := range tt {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseFormat(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}

	if _, err := ParseFormat("yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTracks(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		data, err := Tracks(CSV, "Mix", sampleTracks())
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "ID,Provider,Title,Artist,Album,Duration,Favorite\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `t1,library,Song One,"Artist One, Guest",Album One,3:00,true`) {
			t.Errorf("CSV missing first track, got: %s", output)
		}
		if !strings.Contains(output, `"Song, Two"`) {
			t.Errorf("CSV should quote commas, got: %s", output)
		}
		if !strings.Contains(output, "1:02:05") {
			t.Errorf("CSV should render hour durations, got: %s", output)
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		data, err := Tracks(Markdown, "Mix", sampleTracks())
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Mix\n",
			"**Items**: 2",
			"1. Artist One, Guest - Song One (Album One) [3:00] ♥",
			"2. Artist Two - Song, Two [1:02:05]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("Text", func(t *testing.T) {
		data, err := Tracks(Text, "Mix", sampleTracks())
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "Mix (2)\n") {
			t.Errorf("text missing title, got:\n%s", output)
		}
		if !strings.Contains(output, "  2. Artist Two - Song, Two [1:02:05]") {
			t.Errorf("text missing second track, got:\n%s", output)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := Tracks(JSON, "Mix", sampleTracks())
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}

		var decoded []models.Track
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output should be valid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].ItemID != "t1" {
			t.Errorf("unexpected decoded tracks: %+v", decoded)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		data, err := Tracks(Text, "", nil)
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}
		if len(data) != 0 {
			t.Errorf("expected no output, got %q", data)
		}
	})
}

func TestOtherRenderers(t *testing.T) {
	t.Run("Albums", func(t *testing.T) {
		albums := []models.Album{
			{MediaItem: models.MediaItem{ItemID: "a1", Provider: "library", Name: "First"}, Year: 1999, Artists: []models.ItemRef{{Name: "Band"}}},
			{MediaItem: models.MediaItem{ItemID: "a2", Provider: "library", Name: "Untitled"}},
		}
		data, err := Albums(Text, "Band", albums)
		if err != nil {
			t.Fatalf("Albums failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Band - First (1999)") {
			t.Errorf("missing album line, got:\n%s", output)
		}
		if strings.Contains(output, "Untitled (0)") {
			t.Errorf("zero year should be omitted, got:\n%s", output)
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		playlists := []models.Playlist{
			{MediaItem: models.MediaItem{ItemID: "7", Provider: "library", Name: "Road Trip"}, Owner: "sam", IsEditable: true},
		}
		data, err := Playlists(CSV, "", playlists)
		if err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
		if !strings.Contains(string(data), "7,library,Road Trip,sam,true") {
			t.Errorf("missing playlist row, got: %s", data)
		}

		data, _ = Playlists(Markdown, "Playlists", playlists)
		if !strings.Contains(string(data), "1. Road Trip [library/7] by sam") {
			t.Errorf("missing playlist line, got:\n%s", data)
		}
	})

	t.Run("Players", func(t *testing.T) {
		players := []models.Player{
			{PlayerID: "kitchen", Name: "Kitchen", State: "playing", Available: true, VolumeLevel: 40},
			{PlayerID: "garage", Name: "Garage", State: "idle"},
		}
		data, err := Players(Text, players)
		if err != nil {
			t.Fatalf("Players failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Kitchen (kitchen) playing vol 40") {
			t.Errorf("missing kitchen, got:\n%s", output)
		}
		if !strings.Contains(output, "Garage (garage) idle unavailable vol 0") {
			t.Errorf("missing garage, got:\n%s", output)
		}
	})
}

func TestWriteTracksExport(t *testing.T) {
	playlist := models.Playlist{MediaItem: models.MediaItem{ItemID: "7", Provider: "library", Name: "Road Trip"}}

	t.Run("WithDefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteTracksExport(playlist, sampleTracks(), CSV, "")
		if err != nil {
			t.Fatalf("WriteTracksExport failed: %v", err)
		}
		if path != "library_7_tracks.csv" {
			t.Errorf("unexpected default path %q", path)
		}
		tu.AssertFileExists(t, path)
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mix.md")

		got, err := WriteTracksExport(playlist, sampleTracks(), Markdown, path)
		if err != nil {
			t.Fatalf("WriteTracksExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %q, got %q", path, got)
		}

		data := tu.MustReadFile(t, path)
		if !strings.HasPrefix(data, "# Road Trip") {
			t.Errorf("unexpected export content:\n%s", data)
		}
	})

	t.Run("UnwritablePath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "dir", "out.txt")
		if _, err := WriteTracksExport(playlist, nil, Text, path); err == nil {
			t.Error("expected write error")
		}
	})
}
