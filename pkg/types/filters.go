package types

// Hole spacing labels accepted by the faucet filter
const (
	HoleSpacingSingleHole = "Single Hole"
	HoleSpacingWidespread = "Widespread"
	HoleSpacingCenterset  = "Centerset"
)

// Tile placement locations accepted by the locations filter
const (
	LocationWall        = "wall"
	LocationFloor       = "floor"
	LocationShowerWall  = "shower_wall"
	LocationShowerFloor = "shower_floor"
)

// Filter field names as they appear on the transport boundary
const (
	FieldHoleSpacing = "holeSpacingCompatibility"
	FieldLocations   = "locations"
	FieldHasTubSpout = "hasTubSpout"
	FieldLengthMax   = "lengthMax"
	FieldWidthMax    = "widthMax"
)

// FilterSet narrows search results by product attributes.
// A zero value (or nil pointer field) means the filter is not requested.
type FilterSet struct {
	HoleSpacing string   // One of the HoleSpacing* labels
	Locations   []string // Product must be available for every location
	HasTubSpout *bool
	LengthMax   *float64
	WidthMax    *float64
}

// IsEmpty reports whether no filter field is set
func (f *FilterSet) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.HoleSpacing == "" &&
		len(f.Locations) == 0 &&
		f.HasTubSpout == nil &&
		f.LengthMax == nil &&
		f.WidthMax == nil
}

// Fields returns the names of the filter fields that are set, in a fixed order
func (f *FilterSet) Fields() []string {
	if f == nil {
		return nil
	}
	var fields []string
	if f.HoleSpacing != "" {
		fields = append(fields, FieldHoleSpacing)
	}
	if len(f.Locations) > 0 {
		fields = append(fields, FieldLocations)
	}
	if f.HasTubSpout != nil {
		fields = append(fields, FieldHasTubSpout)
	}
	if f.LengthMax != nil {
		fields = append(fields, FieldLengthMax)
	}
	if f.WidthMax != nil {
		fields = append(fields, FieldWidthMax)
	}
	return fields
}

// Allows reports whether every set field is in the allowed list
func (f *FilterSet) Allows(allowed []string) error {
	for _, field := range f.Fields() {
		found := false
		for _, a := range allowed {
			if a == field {
				found = true
				break
			}
		}
		if !found {
			return &FilterFieldError{Field: field}
		}
	}
	return nil
}

// FilterFieldError reports a filter field that the endpoint does not support
type FilterFieldError struct {
	Field string
}

func (e *FilterFieldError) Error() string {
	return ErrFilterNotAllowed.Error() + ": " + e.Field
}

func (e *FilterFieldError) Unwrap() error {
	return ErrFilterNotAllowed
}

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }
