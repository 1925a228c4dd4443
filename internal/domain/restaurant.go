package domain

// ColumnNames maps the well-known record fields to their on-disk column names.
type ColumnNames struct {
	Latitude  string `yaml:"latitude" json:"latitude"`
	Longitude string `yaml:"longitude" json:"longitude"`
	Geohash   string `yaml:"geohash" json:"geohash"`
	City      string `yaml:"city" json:"city"`
	Country   string `yaml:"country" json:"country"`
}

// DefaultColumns returns the column names used by the restaurant partitions.
func DefaultColumns() ColumnNames {
	return ColumnNames{
		Latitude:  "lat",
		Longitude: "lng",
		Geohash:   "geohash",
		City:      "city",
		Country:   "country",
	}
}

// Restaurant is one row of the dataset.
//
// Coordinates and the geohash are optional: nil means the value is absent.
// Every other column is carried through untouched in Attributes, where a nil
// value marks a field the source partition did not provide.
type Restaurant struct {
	Latitude   *float64           `json:"lat,omitempty"`
	Longitude  *float64           `json:"lng,omitempty"`
	Geohash    *string            `json:"geohash,omitempty"`
	Attributes map[string]*string `json:"attributes"`
}

// Attr returns the pass-through attribute name, or "" when it is absent.
func (r *Restaurant) Attr(name string) string {
	if v := r.Attributes[name]; v != nil {
		return *v
	}
	return ""
}

// HasCoordinates reports whether both latitude and longitude are present.
func (r *Restaurant) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// SetCoordinates sets both coordinates at once.
func (r *Restaurant) SetCoordinates(lat, lng float64) {
	r.Latitude = &lat
	r.Longitude = &lng
}

// ClearCoordinates marks both coordinates as absent.
func (r *Restaurant) ClearCoordinates() {
	r.Latitude = nil
	r.Longitude = nil
}

// Dataset is a collection of restaurants sharing one schema.
// Columns is the ordered union of every column seen in any source partition,
// including the coordinate and geohash columns once they exist.
type Dataset struct {
	Columns []string     `json:"columns"`
	Records []Restaurant `json:"records"`
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.Records) }

// HasColumn reports whether name is part of the schema.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends name to the schema if it is not already there.
func (d *Dataset) AddColumn(name string) {
	if !d.HasColumn(name) {
		d.Columns = append(d.Columns, name)
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }
