// Package audio attaches internet radio streams to the local sound card.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/rs/zerolog/log"
)

// SampleRate is the output rate every stream is resampled to.
const SampleRate = beep.SampleRate(44100)

const userAgent = "fiveradio/1.0"

var ErrUnsupportedFormat = errors.New("unsupported stream format")

type codec int

const (
	codecMP3 codec = iota
	codecVorbis
)

// StatusError is returned when the stream server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream returned status %d: %s", e.StatusCode, e.Status)
}

// codecFor picks a decoder from the response content type, falling back to
// the URL extension. Servers that send nothing usually serve MP3.
func codecFor(contentType, url string) (codec, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg":
		return codecMP3, nil
	case "audio/ogg", "application/ogg", "audio/vorbis", "audio/x-ogg":
		return codecVorbis, nil
	case "audio/aac", "audio/aacp", "audio/x-aac", "audio/mp4", "application/vnd.apple.mpegurl", "audio/x-mpegurl":
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ct)
	}

	switch strings.ToLower(path.Ext(strings.Split(url, "?")[0])) {
	case ".ogg", ".oga":
		return codecVorbis, nil
	case ".aac", ".m3u8", ".m4a":
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path.Ext(url))
	}
	return codecMP3, nil
}

// source is a connected, decoding stream resampled to SampleRate.
type source struct {
	streamer beep.Streamer
	closer   io.Closer
}

func (s *source) Close() error {
	return s.closer.Close()
}

// openSource connects to url and starts decoding. The request lives as long
// as ctx, which must outlive the stream.
func openSource(ctx context.Context, client *http.Client, url string) (*source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Icy-MetaData", "0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	c, err := codecFor(resp.Header.Get("Content-Type"), url)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	var (
		dec    beep.StreamSeekCloser
		format beep.Format
	)
	switch c {
	case codecVorbis:
		dec, format, err = vorbis.Decode(resp.Body)
	default:
		dec, format, err = mp3.Decode(resp.Body)
	}
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode stream: %w", err)
	}
	log.Debug().Str("url", url).Int("rate", int(format.SampleRate)).Int("channels", format.NumChannels).Msg("stream decoding")

	var s beep.Streamer = dec
	if format.SampleRate != SampleRate {
		s = beep.Resample(4, format.SampleRate, SampleRate, dec)
	}
	return &source{streamer: s, closer: dec}, nil
}
