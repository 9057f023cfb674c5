// Package model describes the feature extractor configuration and talks to the
// inference server that runs the backbone, autoencoder and pair classifier.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfiguration is returned for an unknown backbone or autoencoder type.
var ErrInvalidConfiguration = errors.New("invalid model configuration")

// Backbone is the convolutional or transformer feature extractor.
type Backbone string

const (
	ResNet   Backbone = "resnet"
	VGG      Backbone = "vgg"
	DenseNet Backbone = "dense"
	Swin     Backbone = "swin"
)

// Autoencoder is the bottleneck producing the embedding from backbone features.
type Autoencoder string

const (
	AE  Autoencoder = "ae"
	VAE Autoencoder = "vae"
)

// Spec is a resolved backbone × autoencoder combination.
type Spec struct {
	Backbone    Backbone
	Autoencoder Autoencoder
}

// Resolve validates the configured model types. The sparse and denoising
// autoencoder names share the plain autoencoder's interface.
func Resolve(backbone, autoencoder string) (Spec, error) {
	var spec Spec

	switch b := Backbone(strings.ToLower(strings.TrimSpace(backbone))); b {
	case ResNet, VGG, DenseNet, Swin:
		spec.Backbone = b
	default:
		return Spec{}, fmt.Errorf("%w: unknown backbone %q", ErrInvalidConfiguration, backbone)
	}

	switch strings.ToLower(strings.TrimSpace(autoencoder)) {
	case "vae":
		spec.Autoencoder = VAE
	case "ae", "sae", "dae":
		spec.Autoencoder = AE
	default:
		return Spec{}, fmt.Errorf("%w: unknown autoencoder %q", ErrInvalidConfiguration, autoencoder)
	}

	return spec, nil
}

// InputSize returns the image width and height the backbone expects.
func (s Spec) InputSize() (width, height int) {
	if s.Backbone == Swin {
		return 224, 224
	}
	return 128, 256
}

// Letterboxed reports whether images are resized to half the input width and padded
// on both sides instead of being stretched.
func (s Spec) Letterboxed() bool {
	return s.Backbone == Swin
}

func (s Spec) String() string {
	return string(s.Backbone) + "+" + string(s.Autoencoder)
}
