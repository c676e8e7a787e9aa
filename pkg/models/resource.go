package models

// Resource is a person, crew or piece of equipment that can be assigned.
type Resource struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// ResourceAssignment allocates a fraction of a resource to a task. It does
// not take part in date arithmetic.
type ResourceAssignment struct {
	ID         string  `yaml:"id" json:"id"`
	ProjectID  string  `yaml:"project_id" json:"project_id"`
	TaskID     string  `yaml:"task_id" json:"task_id"`
	ResourceID string  `yaml:"resource_id" json:"resource_id"`
	Allocation float64 `yaml:"allocation" json:"allocation"`
}
