package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/levlstudio/levl-core/internal/process"
)

// probeTimeout bounds an ffprobe invocation.
const probeTimeout = 30 * time.Second

// extractTimeout bounds a full frame extraction.
const extractTimeout = 10 * time.Minute

// probeOutput mirrors ffprobe's -of json layout for the fields used
// here.
type probeOutput struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NBFrames   string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeVideo reads container metadata with ffprobe.
func probeVideo(ctx context.Context, ffprobe, videoPath string) (VideoInfo, error) {
	res, err := process.Run(ctx, process.RunSpec{
		Name:   "ffprobe",
		Binary: ffprobe,
		Args: []string{
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
			"-show_entries", "format=duration",
			"-of", "json",
			videoPath,
		},
		Timeout: probeTimeout,
	})
	if err != nil {
		return VideoInfo{}, fmt.Errorf("%w: %v: %s", ErrProbeFailed, err, strings.TrimSpace(res.Stderr))
	}

	return parseProbeOutput([]byte(res.Stdout))
}

// parseProbeOutput decodes ffprobe JSON into a VideoInfo. Missing
// frame counts are derived from duration and fps when possible.
func parseProbeOutput(data []byte) (VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return VideoInfo{}, fmt.Errorf("%w: decode: %v", ErrProbeFailed, err)
	}
	if len(out.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("%w: no video stream", ErrProbeFailed)
	}

	s := out.Streams[0]
	info := VideoInfo{
		Width:  s.Width,
		Height: s.Height,
		FPS:    parseFrameRate(s.RFrameRate),
	}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	info.FrameCount, _ = strconv.Atoi(s.NBFrames)
	if info.FrameCount == 0 && info.FPS > 0 {
		info.FrameCount = int(info.Duration * info.FPS)
	}
	return info, nil
}

// parseFrameRate parses ffprobe's rational frame rate, e.g. "30000/1001".
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	if !found {
		f, _ := strconv.ParseFloat(rate, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// extractFrames dumps every video frame as a PNG under dir and returns
// the sorted frame paths.
func extractFrames(ctx context.Context, ffmpeg, videoPath, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("analysis: create frames dir: %w", err)
	}

	pattern := filepath.Join(dir, "frame_%06d.png")
	res, err := process.Run(ctx, process.RunSpec{
		Name:   "ffmpeg",
		Binary: ffmpeg,
		Args: []string{
			"-hide_banner",
			"-loglevel", "error",
			"-i", videoPath,
			"-start_number", "0",
			pattern,
		},
		Timeout: extractTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrExtractFailed, err, strings.TrimSpace(res.Stderr))
	}

	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractFailed, err)
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	sort.Strings(frames)
	return frames, nil
}
