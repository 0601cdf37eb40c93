// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

const (
	defaultModel = "tts-1"
	defaultVoice = "alloy"
)

// Provider implements tts.Provider using the OpenAI speech API. Output is
// MP3, the API's default container.
type Provider struct {
	client oai.Client
	model  string
	voice  string
	speed  float64
}

var _ tts.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	voice   string
	speed   float64
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the speech model. Defaults to "tts-1".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoice sets the voice name (alloy, echo, fable, onyx, nova, shimmer).
// Defaults to "alloy".
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithSpeed adjusts the speaking rate in [0.25, 4.0]. Zero means default.
func WithSpeed(speed float64) Option {
	return func(c *config) { c.speed = speed }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, voice: defaultVoice}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		voice:  cfg.voice,
		speed:  cfg.speed,
	}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, errors.New("openai: text must not be empty")
	}

	params := oai.AudioSpeechNewParams{
		Model: oai.SpeechModel(p.model),
		Input: text,
		Voice: oai.AudioSpeechNewParamsVoice(p.voice),
	}
	if p.speed > 0 {
		params.Speed = oai.Float(p.speed)
	}

	res, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return tts.Clip{}, types.Wrap(types.KindTTSUnavailable, "openai: speech", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return tts.Clip{}, types.Wrap(types.KindTTSUnavailable, "openai: read audio", err)
	}
	if len(data) == 0 {
		return tts.Clip{}, types.E(types.KindTTSUnavailable, "openai: empty audio response for %q", fmt.Sprintf("%.32s", text))
	}

	return tts.Clip{Audio: data, Format: "mp3"}, nil
}
