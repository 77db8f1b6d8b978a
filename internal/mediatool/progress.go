package mediatool

import (
	"strconv"
	"strings"
	"time"
)

// KeyValueProgressParser builds a LineParser for ffmpeg's "-progress pipe:1"
// stdout stream (lines of key=value pairs terminated by "progress=continue"
// or "progress=end"), computing percent against a known total duration —
// used by transcode; the position comes from the out_time_us key.
func KeyValueProgressParser(totalDuration time.Duration) LineParser {
	state := &struct {
		outTimeUS int64
		speed     float64
	}{}

	return func(line string) (float64, map[string]any, bool) {
		idx := strings.Index(line, "=")
		if idx <= 0 {
			return 0, nil, false
		}
		key, value := line[:idx], line[idx+1:]

		switch key {
		case "out_time_us":
			if value != "N/A" {
				state.outTimeUS, _ = strconv.ParseInt(value, 10, 64)
			}
			return 0, nil, false
		case "speed":
			value = strings.TrimSuffix(value, "x")
			if value != "N/A" {
				state.speed, _ = strconv.ParseFloat(value, 64)
			}
			return 0, nil, false
		case "progress":
			if value != "continue" && value != "end" {
				return 0, nil, false
			}
			elapsed := time.Duration(state.outTimeUS) * time.Microsecond
			percent := 0.0
			if totalDuration > 0 {
				percent = float64(elapsed) / float64(totalDuration) * 100
				if percent > 100 {
					percent = 100
				}
			}
			detail := map[string]any{"elapsed_sec": elapsed.Seconds(), "speed": state.speed}
			return percent, detail, true
		default:
			return 0, nil, false
		}
	}
}

// FrameProgressParser builds a LineParser for ffmpeg stderr's "frame=N ..."
// status lines, computing percent against a known total frame count — used
// by proxy, whose progress is naturally frame-relative (per the stream's
// nb_frames or a duration*fps estimate) rather than time-relative.
func FrameProgressParser(totalFrames int64) LineParser {
	return func(line string) (float64, map[string]any, bool) {
		idx := strings.Index(line, "frame=")
		if idx < 0 {
			return 0, nil, false
		}
		rest := strings.TrimSpace(line[idx+len("frame="):])
		end := strings.IndexAny(rest, " \t")
		if end > 0 {
			rest = rest[:end]
		}
		frame, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return 0, nil, false
		}
		percent := 0.0
		if totalFrames > 0 {
			percent = float64(frame) / float64(totalFrames) * 100
			if percent > 100 {
				percent = 100
			}
		}
		return percent, map[string]any{"frame": frame}, true
	}
}
