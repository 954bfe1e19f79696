package songapi

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Song is the structured record the metadata API returns for one track. The
// upstream payloads are loosely typed: artist entries may be objects or bare
// strings, the album may be an object or a string, and the year may arrive
// as a number or a string. The custom unmarshalers below absorb all of that.
type Song struct {
	Title        string        `json:"title"`
	Artists      []Artist      `json:"artists"`
	Album        *Album        `json:"album"`
	Year         FlexString    `json:"year"`
	Thumbnails   []Thumbnail   `json:"thumbnails"`
	VideoDetails *VideoDetails `json:"videoDetails"`
	Duration     string        `json:"duration"`
}

// Artist is one entry of a song's artist list.
type Artist struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	BrowseID string `json:"browseId"`

	raw string
}

// DisplayName returns the best available name for the entry: name, then
// artist, then browseId, then the raw string form.
func (a Artist) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Artist != "":
		return a.Artist
	case a.BrowseID != "":
		return a.BrowseID
	default:
		return a.raw
	}
}

// UnmarshalJSON accepts either a structured artist object or a raw string.
func (a *Artist) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.raw = s
		return nil
	}

	type artistAlias Artist
	var alias artistAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*a = Artist(alias)
	return nil
}

// MarshalJSON round-trips raw string entries so cached records survive a
// marshal/unmarshal cycle unchanged.
func (a Artist) MarshalJSON() ([]byte, error) {
	if a.raw != "" && a.Name == "" && a.Artist == "" && a.BrowseID == "" {
		return json.Marshal(a.raw)
	}
	type artistAlias Artist
	return json.Marshal(artistAlias(a))
}

// Album may be a plain string or an object carrying a name.
type Album struct {
	Name string `json:"name"`
}

func (al *Album) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		al.Name = s
		return nil
	}

	type albumAlias Album
	var alias albumAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*al = Album(alias)
	return nil
}

// Thumbnail is one entry of a song's thumbnail list, ordered smallest to
// largest by upstream convention.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// VideoDetails carries the nested per-video record some responses include.
type VideoDetails struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Thumbnail string `json:"thumbnail"`
}

// FlexString decodes a JSON string or number into a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Int returns the numeric value, or 0 when the field is empty or not a
// number.
func (f FlexString) Int() int {
	n, err := strconv.Atoi(string(f))
	if err != nil {
		return 0
	}
	return n
}

// BestThumbnailURL returns the URL of the last (largest, by upstream
// convention) thumbnail, falling back to the nested video details.
func (s *Song) BestThumbnailURL() string {
	if s == nil {
		return ""
	}
	if len(s.Thumbnails) > 0 {
		return s.Thumbnails[len(s.Thumbnails)-1].URL
	}
	if s.VideoDetails != nil {
		return s.VideoDetails.Thumbnail
	}
	return ""
}

// SearchResult is one row of a search response.
type SearchResult struct {
	VideoID    string      `json:"videoId"`
	Title      string      `json:"title"`
	Artists    []Artist    `json:"artists"`
	Album      *Album      `json:"album"`
	Duration   string      `json:"duration"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}

// Thumbnail returns the URL of the result's largest thumbnail, if any.
func (r SearchResult) Thumbnail() string {
	if len(r.Thumbnails) == 0 {
		return ""
	}
	return r.Thumbnails[len(r.Thumbnails)-1].URL
}

// ArtistNames joins the display names of the result's artists.
func (r SearchResult) ArtistNames() string {
	names := make([]string, 0, len(r.Artists))
	for _, a := range r.Artists {
		if n := a.DisplayName(); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}
