package media

import (
	"context"
	"fmt"
	"math"
	"os/exec"

	"github.com/rs/zerolog"

	"school-song-portal/internal/domain/ports/adapter"
)

var _ adapter.AudioProcessor = (*FFmpegProcessor)(nil)

// FFmpegProcessor shells out to ffmpeg for pitch and tempo changes.
type FFmpegProcessor struct {
	ffmpegPath string
	log        *zerolog.Logger
}

func NewFFmpegProcessor(ffmpegPath string, logger *zerolog.Logger) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	l := logger.With().Str("component", "FFmpeg").Logger()
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, log: &l}
}

const baseSampleRate = 44100

// adjustFilter builds the filter chain for a combined pitch and speed
// change. asetrate shifts pitch by resampling, the first atempo undoes
// the tempo side effect, the second applies the requested speed.
func adjustFilter(pitchSemitones int, speed float64) string {
	pitchFactor := math.Pow(2, float64(pitchSemitones)/12)
	newRate := int(math.Round(baseSampleRate * pitchFactor))
	return fmt.Sprintf("asetrate=%d,atempo=%.4f,atempo=%.2f", newRate, 1/pitchFactor, speed)
}

// pitchFilter shifts pitch only, restoring the original sample rate.
func pitchFilter(semitones int) string {
	ratio := math.Pow(2, float64(semitones)/12)
	return fmt.Sprintf("asetrate=%d*%.6f,aresample=%d", baseSampleRate, ratio, baseSampleRate)
}

func (p *FFmpegProcessor) AdjustAudio(ctx context.Context, inputPath, outputPath string, pitchSemitones int, speed float64) error {
	if speed <= 0 {
		speed = 1.0
	}
	return p.run(ctx, inputPath, outputPath, "-filter:a", adjustFilter(pitchSemitones, speed))
}

func (p *FFmpegProcessor) PitchShift(ctx context.Context, inputPath, outputPath string, semitones int) error {
	return p.run(ctx, inputPath, outputPath,
		"-af", pitchFilter(semitones), "-c:a", "libmp3lame", "-q:a", "2")
}

func (p *FFmpegProcessor) run(ctx context.Context, inputPath, outputPath string, filterArgs ...string) error {
	args := append([]string{"-i", inputPath}, filterArgs...)
	args = append(args, "-y", outputPath)

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		p.log.Error().Err(err).Str("output", tail(string(out), 400)).Msg("ffmpeg failed")
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
