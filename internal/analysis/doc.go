// Package analysis turns generated videos into scene reconstruction
// data.
//
// A processing run probes the container with ffprobe, extracts frames
// with ffmpeg, and analyses each sampled frame for dominant colors and
// lighting. Per-frame results are aggregated into a camera motion
// profile and an environment layout with reconstruction hints, then
// written as analysis_results.json next to the extracted frames.
//
// Frame decoding and scaling use the bild image toolkit; ffmpeg and
// ffprobe run as supervised subprocesses.
package analysis
