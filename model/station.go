package model

// Station is a normalized descriptor of a playable stream. Values are never
// mutated after the catalog builds them.
type Station struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Frequency   string `json:"frequency"`
	Genre       string `json:"genre"`
	Artist      string `json:"artist"`
	Track       string `json:"track"`
	StreamURL   string `json:"streamUrl,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
	IsLive      bool   `json:"isLive"`
	Description string `json:"description,omitempty"`
}

// PlaybackURL 返回可播放的地址，StreamURL 优先
func (s Station) PlaybackURL() string {
	if s.StreamURL != "" {
		return s.StreamURL
	}
	return s.AudioURL
}

// Playable reports whether the station has any URL to attach.
func (s Station) Playable() bool {
	return s.PlaybackURL() != ""
}

// Genres 按首次出现顺序返回去重后的流派
func Genres(stations []Station) []string {
	seen := make(map[string]bool, len(stations))
	var genres []string
	for _, s := range stations {
		if s.Genre == "" || seen[s.Genre] {
			continue
		}
		seen[s.Genre] = true
		genres = append(genres, s.Genre)
	}
	return genres
}

// FilterByGenre returns the stations in the given genre; an empty genre keeps all.
func FilterByGenre(stations []Station, genre string) []Station {
	if genre == "" {
		return stations
	}
	var out []Station
	for _, s := range stations {
		if s.Genre == genre {
			out = append(out, s)
		}
	}
	return out
}

// FindStationByID 根据 ID 查找电台
func FindStationByID(stations []Station, id string) (Station, bool) {
	for _, s := range stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}
