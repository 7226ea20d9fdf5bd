package domain

// ResourceName identifies a rate-limited external resource.
type ResourceName string

const (
	ResourceTextGeneration  ResourceName = "text-generation"
	ResourceImageGeneration ResourceName = "image-generation"
)

func (r ResourceName) String() string { return string(r) }
