// package fetcher streams remote media to disk and optionally transcodes it to MP3 with ffmpeg.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	partSuffix = ".part"
	tempSuffix = ".webm"
)

// FFmpeg converts downloaded media to MP3.
type FFmpeg struct {
	Path       string
	SampleRate int
	Channels   int
	Bitrate    string
}

// DefaultFFmpeg returns the 44.1 kHz stereo 192k settings.
func DefaultFFmpeg() FFmpeg {
	return FFmpeg{Path: "ffmpeg", SampleRate: 44100, Channels: 2, Bitrate: "192k"}
}

// Args returns the ffmpeg arguments that convert src into dest.
func (f FFmpeg) Args(src, dest string) []string {
	return []string{
		"-y",
		"-i", src,
		"-vn",
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"-b:a", f.Bitrate,
		"-f", "mp3",
		dest,
	}
}

// Options configures a [Fetcher].
type Options struct {
	Media  Transport // used for YouTube locators
	Direct Transport // used for everything else; defaults to plain HTTP
	FFmpeg FFmpeg
	Logger *log.Logger
}

// Fetcher downloads media and cover art and runs conversions.
type Fetcher struct {
	media  Transport
	direct Transport
	ffmpeg FFmpeg
	logger *log.Logger
}

// New creates a Fetcher. Zero-valued options select plain HTTP and [DefaultFFmpeg].
func New(opts Options) *Fetcher {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Direct == nil {
		opts.Direct = &StreamTransport{Opener: &HTTPOpener{}, Logger: opts.Logger}
	}
	if opts.Media == nil {
		opts.Media = opts.Direct
	}

	defaults := DefaultFFmpeg()
	if opts.FFmpeg.Path == "" {
		opts.FFmpeg.Path = defaults.Path
	}
	if opts.FFmpeg.SampleRate <= 0 {
		opts.FFmpeg.SampleRate = defaults.SampleRate
	}
	if opts.FFmpeg.Channels <= 0 {
		opts.FFmpeg.Channels = defaults.Channels
	}
	if opts.FFmpeg.Bitrate == "" {
		opts.FFmpeg.Bitrate = defaults.Bitrate
	}

	return &Fetcher{media: opts.Media, direct: opts.Direct, ffmpeg: opts.FFmpeg, logger: opts.Logger}
}

func (f *Fetcher) transportFor(locator string) Transport {
	if IsYouTube(locator) {
		return f.media
	}
	return f.direct
}

// Fetch transfers locator to dest, overwriting any existing file.
//
// Bytes land in a uniquely named "<dest>.*.part" file next to dest and are renamed into place only after the
// full transfer, so concurrent writers of one dest never share a temp file. The temp file is removed on failure.
func (f *Fetcher) Fetch(ctx context.Context, locator, dest string) error {
	if strings.TrimSpace(locator) == "" {
		return newError(SourceUnavailable, locator, dest, errors.New("empty locator"))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return newError(SourceUnavailable, locator, dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*"+partSuffix)
	if err != nil {
		return newError(SourceUnavailable, locator, dest, err)
	}
	part := tmp.Name()
	tmp.Close()

	if err := f.transportFor(locator).Download(ctx, locator, part); err != nil {
		_ = os.Remove(part)
		var fe *Error
		if !errors.As(err, &fe) {
			fe = newError(TransferInterrupted, locator, part, err)
		}
		return fe
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return newError(TransferInterrupted, locator, dest, err)
	}

	f.logger.Debug("fetched", "locator", locator, "dest", dest)
	return nil
}

// TempPath is where [Fetcher.Transcode] stages the raw download for dest.
func TempPath(dest string) string {
	return dest + tempSuffix
}

// Transcode fetches locator to a temporary file next to dest and converts it to MP3 at dest.
func (f *Fetcher) Transcode(ctx context.Context, locator, dest string) error {
	tmp := TempPath(dest)
	if err := f.Fetch(ctx, locator, tmp); err != nil {
		return err
	}
	return f.Convert(ctx, tmp, dest)
}

// Convert runs ffmpeg on src, writing dest.
//
// src is removed only when ffmpeg exits cleanly. On failure src is kept and dest is removed.
func (f *Fetcher) Convert(ctx context.Context, src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return newError(ConversionFailed, src, dest, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffmpeg.Path, f.ffmpeg.Args(src, dest)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(dest)
		if msg := lastLine(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return newError(ConversionFailed, src, dest, err)
	}

	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("failed to remove temp file", "path", src, "error", err)
	}

	f.logger.Debug("converted", "src", src, "dest", dest)
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
