package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Compile-time interface assertion.
var _ Synthesizer = (*CoquiClient)(nil)

const (
	apiTTSEndpoint = "/api/tts"

	defaultCoquiTimeout = 30 * time.Second
)

// CoquiOption is a functional option for configuring a [CoquiClient].
type CoquiOption func(*CoquiClient)

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 30 s.
func WithTimeout(d time.Duration) CoquiOption {
	return func(c *CoquiClient) {
		c.httpClient.Timeout = d
	}
}

// WithVoices maps language codes to speaker ids on the server. Languages
// without an entry use the server's default speaker.
func WithVoices(voices map[string]string) CoquiOption {
	return func(c *CoquiClient) {
		c.voices = voices
	}
}

// CoquiClient synthesizes speech through a Coqui TTS server's REST API
// (the standard server image, GET /api/tts with URL query parameters).
// Safe for concurrent use.
type CoquiClient struct {
	serverURL  string
	voices     map[string]string
	httpClient *http.Client
}

// NewCoquiClient creates a client targeting the TTS server at serverURL
// (e.g. "http://localhost:5002"). serverURL must be non-empty.
func NewCoquiClient(serverURL string, opts ...CoquiOption) (*CoquiClient, error) {
	if serverURL == "" {
		return nil, errors.New("synth: serverURL must not be empty")
	}
	c := &CoquiClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultCoquiTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Synthesize performs one GET /api/tts call and returns the WAV response
// body. A non-200 answer surfaces the server's reason text so the caller can
// report why synthesis was refused.
func (c *CoquiClient) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if lang != "" {
		params.Set("language_id", lang)
	}
	if speaker := c.voices[lang]; speaker != "" {
		params.Set("speaker_id", speaker)
	}

	reqURL := c.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("synth: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synth: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synth: GET %s returned status %d: %s",
			apiTTSEndpoint, resp.StatusCode, strings.TrimSpace(string(reason)))
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("synth: read WAV response: %w", err)
	}
	if len(wav) == 0 {
		return nil, errors.New("synth: TTS server returned empty audio")
	}
	return wav, nil
}

// Close implements [Synthesizer]. The HTTP client holds no resources that
// outlive its requests.
func (c *CoquiClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
