package normalize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/longbridgeapp/opencc"
)

// DefaultProfile converts Traditional Chinese to Simplified.
const DefaultProfile = "t2s"

// Dictionary converts text with one loaded OpenCC profile.
type Dictionary interface {
	Convert(text string) (string, error)
}

// Loader opens the dictionary for a profile name such as "t2s".
type Loader func(profile string) (Dictionary, error)

// OpenCC converts text with the dictionaries embedded in the opencc library.
// The dictionary is loaded on first use and shared afterwards.
type OpenCC struct {
	profile string
	load    Loader

	once sync.Once
	dict Dictionary
	err  error
}

// NewOpenCC returns a converter for profile. An empty profile takes
// DefaultProfile and a trailing ".json" is ignored.
func NewOpenCC(profile string) *OpenCC {
	profile = strings.TrimSuffix(strings.TrimSpace(profile), ".json")
	if profile == "" {
		profile = DefaultProfile
	}
	return &OpenCC{profile: profile, load: loadDictionary}
}

// WithLoader sets a custom dictionary loader (for testing).
func (o *OpenCC) WithLoader(loader Loader) {
	if loader != nil {
		o.load = loader
	}
}

// Profile returns the configured conversion profile.
func (o *OpenCC) Profile() string { return o.profile }

// Check loads the dictionary without converting anything.
func (o *OpenCC) Check() error {
	_, err := o.dictionary()
	return err
}

// Convert returns text converted with the configured profile.
func (o *OpenCC) Convert(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dict, err := o.dictionary()
	if err != nil {
		return "", err
	}
	out, err := dict.Convert(text)
	if err != nil {
		return "", fmt.Errorf("opencc %s: %w", o.profile, err)
	}
	return out, nil
}

func (o *OpenCC) dictionary() (Dictionary, error) {
	o.once.Do(func() {
		o.dict, o.err = o.load(o.profile)
		if o.err != nil {
			o.err = fmt.Errorf("load opencc profile %s: %w", o.profile, o.err)
		}
	})
	return o.dict, o.err
}

func loadDictionary(profile string) (Dictionary, error) {
	cc, err := opencc.New(profile)
	if err != nil {
		return nil, err
	}
	return cc, nil
}
