package ytdlp

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/psptunes/psptunes/internal/constants"
)

// Info is the subset of yt-dlp's JSON output the pipeline consumes. Fields
// that yt-dlp sometimes emits as a single string and sometimes as a list
// (artist, creator) use StringList.
type Info struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Artist     StringList `json:"artist"`
	Creator    StringList `json:"creator"`
	Uploader   string     `json:"uploader"`
	UploaderID string     `json:"uploader_id"`
	Channel    string     `json:"channel"`
	ChannelID  string     `json:"channel_id"`
	Album      string     `json:"album"`
	Release    string     `json:"release"`
	Thumbnail  string     `json:"thumbnail"`
	UploadDate string     `json:"upload_date"`
	URL        string     `json:"url"`
	Ext        string     `json:"ext"`
	Filename   string     `json:"_filename"`
}

// FallbackArtists returns the artist candidates in priority order: artist,
// uploader, uploader id, creator, channel, channel id. The first non-empty
// candidate wins; list-valued fields contribute all their entries.
func (i *Info) FallbackArtists() []string {
	if i == nil {
		return nil
	}
	candidates := [][]string{
		i.Artist,
		{i.Uploader},
		{i.UploaderID},
		i.Creator,
		{i.Channel},
		{i.ChannelID},
	}
	for _, group := range candidates {
		var names []string
		for _, n := range group {
			if n != "" {
				names = append(names, n)
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	return nil
}

// OutputPath predicts where the transcoded MP3 for this info landed: the
// reported filename with its extension swapped for .mp3. Returns "" when the
// info carries no filename.
func (i *Info) OutputPath() string {
	if i == nil || i.Filename == "" {
		return ""
	}
	ext := filepath.Ext(i.Filename)
	return strings.TrimSuffix(i.Filename, ext) + constants.ExtMP3
}

// StringList decodes a JSON string, list of strings, or null.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == "" {
		*s = nil
		return nil
	}
	*s = []string{v}
	return nil
}
