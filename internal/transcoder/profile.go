package transcoder

import "strconv"

// Profile is an audio encoding profile.
type Profile struct {
	Channels   int
	SampleRate int
	Bitrate    string
	Codec      string
	Format     string
}

// SpeechProfile is the only profile the service encodes to.
var SpeechProfile = Profile{
	Channels:   1,
	SampleRate: 16000,
	Bitrate:    "32k",
	Codec:      "libmp3lame",
	Format:     "mp3",
}

// Args builds the ffmpeg argument list for reading in and writing out.
func (p Profile) Args(in, out string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", in,
		"-vn",
		"-ac", strconv.Itoa(p.Channels),
		"-ar", strconv.Itoa(p.SampleRate),
		"-b:a", p.Bitrate,
		"-c:a", p.Codec,
		"-f", p.Format,
		out,
	}
}

// Matches reports whether probed stream info agrees with the profile.
// Encoder names differ from the decoder names ffprobe reports, so only the
// container format is compared for the codec.
func (p Profile) Matches(info *AudioInfo) bool {
	if info == nil {
		return false
	}
	return info.Channels == p.Channels &&
		info.SampleRate == p.SampleRate &&
		info.Codec == p.Format
}
