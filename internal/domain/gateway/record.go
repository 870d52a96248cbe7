package gateway

// Record is one row of a remote collection decoded from the positional
// field envelope into name-keyed values. Absent fields are not present in
// the map; the decoder never substitutes empty strings.
type Record map[string]string

// Get returns the value for a field and whether it was present.
func (r Record) Get(name string) (string, bool) {
	v, ok := r[name]
	return v, ok
}
