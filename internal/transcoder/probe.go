package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// ErrNoAudioStream is returned by Probe when the file has no audio stream.
var ErrNoAudioStream = errors.New("no audio stream")

// AudioInfo contains information about the first audio stream of a file.
type AudioInfo struct {
	Codec      string  `json:"codec"`
	Channels   int     `json:"channels"`
	SampleRate int     `json:"sampleRate"`
	BitRate    int64   `json:"bitRate"`
	Duration   float64 `json:"duration"`
	Format     string  `json:"format"`
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
		BitRate    string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Probe retrieves audio stream information using ffprobe.
func (t *Transcoder) Probe(ctx context.Context, filePath string) (*AudioInfo, error) {
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*AudioInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding ffprobe output: %w", err)
	}

	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}

		info := &AudioInfo{
			Codec:    s.CodecName,
			Channels: s.Channels,
			Format:   out.Format.FormatName,
		}
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

		bitRate := s.BitRate
		if bitRate == "" {
			bitRate = out.Format.BitRate
		}
		info.BitRate, _ = strconv.ParseInt(bitRate, 10, 64)

		return info, nil
	}

	return nil, ErrNoAudioStream
}
