// Package provision loads the responder's static certificate slot and
// measurement manifest from a YAML file, in the same declarative,
// file-driven style used elsewhere in this module for per-entity
// configuration. Unlike a live peer configuration, a slot manifest never
// changes at runtime: slots are provisioned once at startup and the
// responder core treats them as read-only.
package provision

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/spdm-io/spdm-responder/internal/spdm"
)

// SlotManifest is the on-disk shape of a certificate slot entry.
type SlotManifest struct {
	ID            uint8  `yaml:"id" validate:"lt=8"`
	CertChainPath string `yaml:"cert_chain_path" validate:"required,file"`
}

// MeasurementManifest is the on-disk shape of a static measurement record.
type MeasurementManifest struct {
	Index           uint8  `yaml:"index" validate:"required"`
	MeasurementSpec uint8  `yaml:"measurement_spec"`
	ValuePath       string `yaml:"value_path" validate:"required,file"`
}

// Manifest is the root document of a provisioning file.
type Manifest struct {
	Slots        []SlotManifest        `yaml:"slots" validate:"dive"`
	Measurements []MeasurementManifest `yaml:"measurements" validate:"dive"`
}

var validate = validator.New()

// Load reads and validates a manifest file at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("provision: read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("provision: parse manifest %s: %w", path, err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("provision: validate manifest %s: %w", path, err)
	}
	seen := make(map[uint8]bool, len(m.Slots))
	for _, s := range m.Slots {
		if seen[s.ID] {
			return nil, fmt.Errorf("provision: duplicate slot id %d in %s", s.ID, path)
		}
		seen[s.ID] = true
	}
	return &m, nil
}

// Apply reads each manifest slot's certificate chain from disk and
// provisions it into ctx, setting CertificateSlot.Hash to hashFunc(chain):
// this package has no negotiated algorithm of its own, so the caller
// supplies the hash function. Measurement records are appended to
// ctx.Measurements.
func (m *Manifest) Apply(ctx *spdm.Context, hashFunc func([]byte) []byte) error {
	for _, s := range m.Slots {
		chain, err := os.ReadFile(s.CertChainPath)
		if err != nil {
			return fmt.Errorf("provision: read cert chain for slot %d: %w", s.ID, err)
		}
		ctx.Slots[s.ID] = spdm.CertificateSlot{
			Chain: chain,
			Hash:  hashFunc(chain),
		}
	}
	for _, rec := range m.Measurements {
		value, err := os.ReadFile(rec.ValuePath)
		if err != nil {
			return fmt.Errorf("provision: read measurement %d: %w", rec.Index, err)
		}
		ctx.Measurements = append(ctx.Measurements, spdm.MeasurementBlock{
			Index:           rec.Index,
			MeasurementSpec: rec.MeasurementSpec,
			Value:           value,
		})
	}
	return nil
}
