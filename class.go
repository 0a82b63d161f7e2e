package tdp

// Class is a shared, immutable-after-load type descriptor naming a
// serializer (spec §3). Many entities share one Class.
type Class struct {
	ID         int32
	Name       string
	Serializer *Serializer
}
