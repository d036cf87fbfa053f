package catalog

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"fiveradio/model"
)

// Normalize turns raw feed entries into stations. Entries that are not JSON
// objects are skipped but still consume their index, so positional fallbacks
// match the entry's place in the feed.
func Normalize(raw []interface{}) []model.Station {
	stations := make([]model.Station, 0, len(raw))
	used := make(map[string]int, len(raw))

	for i, entry := range raw {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		st := normalizeEntry(fields, i)
		st.ID = uniqueID(st.ID, used)
		if st.Frequency == "" {
			st.Frequency = frequencyLabel(st.ID)
		}
		stations = append(stations, st)
	}
	return stations
}

func normalizeEntry(f map[string]interface{}, index int) model.Station {
	name := firstString(f, "name")

	id := firstString(f, "id")
	if id == "" {
		id = slugify(name)
	}
	if id == "" {
		id = fmt.Sprintf("station-%d", index)
	}

	if name == "" {
		name = firstString(f, "title")
	}
	if name == "" {
		name = fmt.Sprintf("Station %d", index+1)
	}

	return model.Station{
		ID:          id,
		Name:        name,
		Frequency:   firstString(f, "frequency"),
		Genre:       orDefault(firstString(f, "genre", "category"), "Music"),
		Artist:      orDefault(firstString(f, "artist", "currentArtist"), "Live Radio"),
		Track:       orDefault(firstString(f, "track", "currentTrack", "description"), "Now Playing"),
		AudioURL:    firstString(f, "audioUrl", "streamUrl", "url", "stream"),
		StreamURL:   firstString(f, "streamUrl", "url", "stream"),
		IsLive:      liveFlag(f["isLive"]),
		Description: firstString(f, "description", "desc"),
	}
}

// firstString returns the first key holding a non-empty string or a number.
func firstString(f map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := f[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func liveFlag(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return true
}

// slugify lower-cases the name and joins whitespace-separated words with '-'.
func slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func uniqueID(id string, used map[string]int) string {
	n := used[id]
	used[id] = n + 1
	if n == 0 {
		return id
	}
	for {
		n++
		candidate := fmt.Sprintf("%s-%d", id, n)
		if used[candidate] == 0 {
			used[candidate] = 1
			used[id] = n
			return candidate
		}
	}
}

// frequencyLabel derives a stable FM-style label in 88.0..107.9 from the ID.
func frequencyLabel(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	tenths := 880 + int(h.Sum32()%200)
	return fmt.Sprintf("%d.%d", tenths/10, tenths%10)
}
