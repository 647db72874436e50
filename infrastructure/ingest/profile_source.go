package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// equipmentColumns is the header contract of the equipment table.
var equipmentColumns = []string{"provider_id", "equipment_class", "field_strength"}

// subspecialtyColumns is the header contract of the sub-specialization table.
var subspecialtyColumns = []string{"provider_id", "subspecialty"}

// CSVProfileSource loads provider profiles from the optional equipment and
// sub-specialization tables and merges them per provider. Either path may
// be empty, in which case that table simply contributes nothing.
// Within one table the first row for a provider wins; later rows for the
// same provider are ignored.
type CSVProfileSource struct {
	equipmentPath    string
	subspecialtyPath string
}

var _ ports.ProfileSource = (*CSVProfileSource)(nil)

// NewCSVProfileSource creates a profile source reading from the given
// files. Empty paths skip the corresponding table.
func NewCSVProfileSource(equipmentPath, subspecialtyPath string) *CSVProfileSource {
	if equipmentPath != "" {
		equipmentPath = filepath.Clean(equipmentPath)
	}
	if subspecialtyPath != "" {
		subspecialtyPath = filepath.Clean(subspecialtyPath)
	}
	return &CSVProfileSource{
		equipmentPath:    equipmentPath,
		subspecialtyPath: subspecialtyPath,
	}
}

// Profiles loads and merges the configured tables. Providers appear in
// first-seen order across the equipment table, then the sub-specialization
// table.
func (s *CSVProfileSource) Profiles(ctx context.Context) ([]domain.ProviderProfile, error) {
	var profiles []domain.ProviderProfile
	ordinals := make(map[string]int)

	lookup := func(providerID string) int {
		if i, ok := ordinals[providerID]; ok {
			return i
		}
		ordinals[providerID] = len(profiles)
		profiles = append(profiles, domain.ProviderProfile{ProviderID: providerID})
		return len(profiles) - 1
	}

	if s.equipmentPath != "" {
		err := readTable(ctx, s.equipmentPath, equipmentColumns, func(num int, row tableRow) error {
			providerID := row.field("provider_id")
			if providerID == "" {
				return fmt.Errorf("%w: provider_id is empty", ports.ErrMalformedRecord)
			}
			i := lookup(providerID)
			if profiles[i].EquipmentClass == "" {
				profiles[i].EquipmentClass = row.field("equipment_class")
				profiles[i].FieldStrength = row.field("field_strength")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if s.subspecialtyPath != "" {
		err := readTable(ctx, s.subspecialtyPath, subspecialtyColumns, func(num int, row tableRow) error {
			providerID := row.field("provider_id")
			if providerID == "" {
				return fmt.Errorf("%w: provider_id is empty", ports.ErrMalformedRecord)
			}
			i := lookup(providerID)
			if profiles[i].Subspecialty == "" {
				profiles[i].Subspecialty = row.field("subspecialty")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return profiles, nil
}
