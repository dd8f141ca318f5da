package types

// Metadata is an opaque customer supplied blob carried through the domain
// boundary. It is never strongly typed.
type Metadata map[string]string

// Merge returns a copy of m with the entries of other applied on top
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
