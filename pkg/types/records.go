package types

// Role maps a named responsibility to the tracker login accountable for it.
type Role struct {
	Name string `json:"name"`
	User string `json:"user"`
}

// Task is a reusable unit of onboarding work, owned by a Role.
type Task struct {
	Subject   string `json:"subject"`
	Role      string `json:"role"`
	LongDescr string `json:"long_descr"`
}

// TaskMap names a department and the ordered task subjects that apply to
// new hires of that department. Subjects reference Task.Subject by string;
// a subject with no matching Task is tolerated and dropped at resolution.
type TaskMap struct {
	Name  string   `json:"name"`
	Tasks []string `json:"tasks"`
}
