package tts

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/moneihq/monei-voice/domain"
)

// builtinVoices is the YarnGPT voice set shipped with the service. It seeds
// the catalog at startup; RefreshVoices may replace it from upstream.
var builtinVoices = map[string]string{
	"Idera":    "Melodic, gentle",
	"Emma":     "Authoritative, deep",
	"Zainab":   "Soothing, gentle",
	"Osagie":   "Smooth, calm",
	"Jude":     "Warm, confident",
	"Chinenye": "Engaging, warm",
	"Tayo":     "Upbeat, energetic",
	"Regina":   "Mature, warm",
	"Adaora":   "Warm, Engaging",
	"Umar":     "Calm, smooth",
	"Mary":     "Energetic, youthful",
	"Nonso":    "Bold, resonant",
	"Remi":     "Melodious, warm",
	"Adam":     "Deep, Clear",
}

// Catalog is the process-wide set of accepted voice names. It is read-only
// after startup except for explicit refreshes, which replace the whole set
// atomically under the write lock.
type Catalog struct {
	mu           sync.RWMutex
	voices       map[string]string
	defaultVoice string
}

// NewCatalog seeds the catalog with the builtin voices and verifies the
// configured default exists, so a typo fails startup rather than the first
// request.
func NewCatalog(defaultVoice string) (*Catalog, error) {
	voices := make(map[string]string, len(builtinVoices))
	for name, desc := range builtinVoices {
		voices[name] = desc
	}
	defaultVoice = NormalizeVoice(defaultVoice)
	if _, ok := voices[defaultVoice]; !ok {
		return nil, fmt.Errorf("default voice %q is not in the voice catalog", defaultVoice)
	}
	return &Catalog{voices: voices, defaultVoice: defaultVoice}, nil
}

// NormalizeVoice applies the upstream service's naming convention: trimmed,
// first letter capitalized, rest lowered.
func NormalizeVoice(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

// Default returns the configured default voice name.
func (c *Catalog) Default() string {
	return c.defaultVoice
}

// Has reports whether the normalized name is an accepted voice.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.voices[NormalizeVoice(name)]
	return ok
}

// List returns the catalog sorted by voice name.
func (c *Catalog) List() []domain.Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Voice, 0, len(c.voices))
	for name, desc := range c.voices {
		out = append(out, domain.Voice{Name: name, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// replace swaps in a new voice set. The default voice must survive the swap;
// otherwise the old set is kept and an error returned.
func (c *Catalog) replace(voices map[string]string) error {
	if _, ok := voices[c.defaultVoice]; !ok {
		return fmt.Errorf("refreshed catalog is missing the default voice %q", c.defaultVoice)
	}
	c.mu.Lock()
	c.voices = voices
	c.mu.Unlock()
	return nil
}
