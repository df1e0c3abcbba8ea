package emulator

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"

	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/fxamacker/cbor/v2"
	"github.com/jtejido/sourceafis"
	afisconfig "github.com/jtejido/sourceafis/config"
)

// envelope is the wire form of an emulator template: the captured grayscale
// frame, CBOR-encoded. Keeping the frame rather than extracted minutiae lets
// Score rebuild a SourceAFIS template on whatever engine version is running.
type envelope struct {
	Version int    `cbor:"v"`
	Width   int    `cbor:"w"`
	Height  int    `cbor:"h"`
	Pixels  []byte `cbor:"p"`
}

const envelopeVersion = 1

// discardTransparency drops SourceAFIS transparency output; the emulator has
// no use for the intermediate artifacts.
type discardTransparency struct{}

func (discardTransparency) Accepts(string) bool                 { return false }
func (discardTransparency) Accept(string, string, []byte) error { return nil }

var (
	afisLogger  = sourceafis.NewTransparencyLogger(discardTransparency{})
	afisCreator = sourceafis.NewTemplateCreator(afisLogger)
)

func init() {
	afisconfig.LoadDefaultConfig()
	afisconfig.Config.Workers = runtime.NumCPU()
}

func encodeTemplate(frame device.Frame) ([]byte, error) {
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pixels) < frame.Width*frame.Height {
		return nil, fmt.Errorf("malformed frame %dx%d with %d pixels", frame.Width, frame.Height, len(frame.Pixels))
	}
	data, err := cbor.Marshal(envelope{
		Version: envelopeVersion,
		Width:   frame.Width,
		Height:  frame.Height,
		Pixels:  frame.Pixels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode template envelope: %w", err)
	}
	return data, nil
}

func decodeTemplate(data []byte) (device.Frame, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return device.Frame{}, fmt.Errorf("failed to decode template envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return device.Frame{}, fmt.Errorf("unsupported template envelope version %d", env.Version)
	}
	if env.Width <= 0 || env.Height <= 0 || len(env.Pixels) < env.Width*env.Height {
		return device.Frame{}, fmt.Errorf("malformed template envelope %dx%d with %d pixels", env.Width, env.Height, len(env.Pixels))
	}
	return device.Frame{Width: env.Width, Height: env.Height, Pixels: env.Pixels}, nil
}

// afisImage turns envelope bytes back into a SourceAFIS input image.
func afisImage(data []byte) (*sourceafis.Image, error) {
	frame, err := decodeTemplate(data)
	if err != nil {
		return nil, err
	}
	gray := &image.Gray{
		Pix:    frame.Pixels,
		Stride: frame.Width,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	img, err := sourceafis.NewFromGray(gray)
	if err != nil {
		return nil, fmt.Errorf("frame not usable as fingerprint image: %w", err)
	}
	return img, nil
}

// scorePair runs the SourceAFIS matcher over two envelope-encoded templates
// and maps the double score onto the vendor 0..100 integer scale.
func scorePair(a, b []byte) (int, error) {
	probeImg, err := afisImage(a)
	if err != nil {
		return 0, err
	}
	candidateImg, err := afisImage(b)
	if err != nil {
		return 0, err
	}
	probe, err := afisCreator.Template(probeImg)
	if err != nil {
		return 0, fmt.Errorf("probe template extraction failed: %w", err)
	}
	candidate, err := afisCreator.Template(candidateImg)
	if err != nil {
		return 0, fmt.Errorf("candidate template extraction failed: %w", err)
	}
	matcher, err := sourceafis.NewMatcher(afisLogger, probe)
	if err != nil {
		return 0, fmt.Errorf("matcher setup failed: %w", err)
	}
	raw := matcher.Match(context.Background(), candidate)
	score := int(math.Round(raw))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}
