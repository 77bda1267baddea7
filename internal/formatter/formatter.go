// package formatter renders library data as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
)

// Format selects an output representation.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts a format name or a common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	switch f {
	case Markdown:
		return "md"
	case CSV:
		return "csv"
	case JSON:
		return "json"
	default:
		return "txt"
	}
}

// table is the intermediate form every renderer consumes.
type table struct {
	title   string
	headers []string
	rows    [][]string
	// line renders a row for text and Markdown lists.
	line func(row []string) string
}

func (t table) render(f Format, v any) ([]byte, error) {
	switch f {
	case CSV:
		return t.csv()
	case JSON:
		return json.MarshalIndent(v, "", "  ")
	case Markdown:
		return t.markdown(), nil
	default:
		return t.text(), nil
	}
}

func (t table) csv() ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(t.headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range t.rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func (t table) markdown() []byte {
	var buf bytes.Buffer
	if t.title != "" {
		fmt.Fprintf(&buf, "# %s\n\n", t.title)
	}
	fmt.Fprintf(&buf, "**Items**: %d\n\n", len(t.rows))
	for i, row := range t.rows {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, t.line(row))
	}
	return buf.Bytes()
}

func (t table) text() []byte {
	var buf bytes.Buffer
	if t.title != "" {
		fmt.Fprintf(&buf, "%s (%d)\n\n", t.title, len(t.rows))
	}
	for i, row := range t.rows {
		fmt.Fprintf(&buf, "%3d. %s\n", i+1, t.line(row))
	}
	return buf.Bytes()
}

func favoriteMark(fav bool) string {
	if fav {
		return "♥"
	}
	return ""
}

// Tracks renders tracks. Rows are: ID, Provider, Title, Artist, Album, Duration, Favorite.
func Tracks(f Format, title string, tracks []models.Track) ([]byte, error) {
	t := table{
		title:   title,
		headers: []string{"ID", "Provider", "Title", "Artist", "Album", "Duration", "Favorite"},
		line: func(r []string) string {
			s := fmt.Sprintf("%s - %s", r[3], r[2])
			if r[4] != "" {
				s += fmt.Sprintf(" (%s)", r[4])
			}
			s += " [" + r[5] + "]"
			if r[6] == "true" {
				s += " " + favoriteMark(true)
			}
			return s
		},
	}
	for _, tr := range tracks {
		t.rows = append(t.rows, []string{
			tr.ItemID,
			tr.Provider,
			tr.Name,
			tr.ArtistNames(),
			tr.AlbumName(),
			models.FormatDuration(tr.Duration),
			strconv.FormatBool(tr.Favorite),
		})
	}
	return t.render(f, tracks)
}

// Albums renders albums. Rows are: ID, Provider, Title, Artist, Year, Type.
func Albums(f Format, title string, albums []models.Album) ([]byte, error) {
	t := table{
		title:   title,
		headers: []string{"ID", "Provider", "Title", "Artist", "Year", "Type"},
		line: func(r []string) string {
			s := r[2]
			if r[3] != "" {
				s = r[3] + " - " + s
			}
			if r[4] != "0" {
				s += " (" + r[4] + ")"
			}
			return s
		},
	}
	for _, a := range albums {
		names := make([]string, 0, len(a.Artists))
		for _, ar := range a.Artists {
			names = append(names, ar.Name)
		}
		t.rows = append(t.rows, []string{
			a.ItemID,
			a.Provider,
			a.Name,
			strings.Join(names, ", "),
			strconv.Itoa(a.Year),
			a.AlbumType,
		})
	}
	return t.render(f, albums)
}

// Playlists renders playlists. Rows are: ID, Provider, Name, Owner, Editable.
func Playlists(f Format, title string, playlists []models.Playlist) ([]byte, error) {
	t := table{
		title:   title,
		headers: []string{"ID", "Provider", "Name", "Owner", "Editable"},
		line: func(r []string) string {
			s := fmt.Sprintf("%s [%s/%s]", r[2], r[1], r[0])
			if r[3] != "" {
				s += " by " + r[3]
			}
			return s
		},
	}
	for _, p := range playlists {
		t.rows = append(t.rows, []string{p.ItemID, p.Provider, p.Name, p.Owner, strconv.FormatBool(p.IsEditable)})
	}
	return t.render(f, playlists)
}

// Players renders players. Rows are: ID, Name, State, Available, Volume.
func Players(f Format, players []models.Player) ([]byte, error) {
	t := table{
		title:   "Players",
		headers: []string{"ID", "Name", "State", "Available", "Volume"},
		line: func(r []string) string {
			s := fmt.Sprintf("%s (%s) %s", r[1], r[0], r[2])
			if r[3] == "false" {
				s += " unavailable"
			}
			return s + " vol " + r[4]
		},
	}
	for _, p := range players {
		t.rows = append(t.rows, []string{
			p.PlayerID,
			p.Name,
			p.State,
			strconv.FormatBool(p.Available),
			strconv.Itoa(p.VolumeLevel),
		})
	}
	return t.render(f, players)
}

// Write copies rendered output to w.
func Write(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

// WriteTracksExport writes a rendered track list to path.
//
// Defaults to {provider}_{itemID}_tracks.{ext} when path is empty.
func WriteTracksExport(playlist models.Playlist, tracks []models.Track, f Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.%s", playlist.Ref(), f.Ext())
	}

	data, err := Tracks(f, playlist.Name, tracks)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", f, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
