package domain

// ProviderProfile carries read-only descriptive attributes of a provider,
// joined against the labeled provider table after classification for
// cross-tabulation. The pipeline core never reads these values; a classified
// provider with no matching profile is reported as an integrity violation by
// the reporting layer.
type ProviderProfile struct {
	// ProviderID identifies the provider.
	ProviderID string `json:"provider_id"`

	// EquipmentClass names the imaging equipment class the provider
	// primarily operates, for example "CT" or "MRI".
	EquipmentClass string `json:"equipment_class,omitempty"`

	// FieldStrength describes the scanner field strength, for example "1.5T".
	FieldStrength string `json:"field_strength,omitempty"`

	// Subspecialty names the provider's reading subspecialty.
	Subspecialty string `json:"subspecialty,omitempty"`
}
