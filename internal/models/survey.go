package models

// TaskType determines how a task's raw delta value deserializes.
type TaskType string

const (
	TaskTypeText           TaskType = "TEXT"
	TaskTypeNumber         TaskType = "NUMBER"
	TaskTypeMultipleChoice TaskType = "MULTIPLE_CHOICE"
)

// Cardinality constrains how many options a multiple-choice task accepts.
type Cardinality string

const (
	CardinalitySelectOne      Cardinality = "SELECT_ONE"
	CardinalitySelectMultiple Cardinality = "SELECT_MULTIPLE"
)

// Option is a selectable choice of a multiple-choice task.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// MultipleChoice carries the option list for MULTIPLE_CHOICE tasks.
type MultipleChoice struct {
	Cardinality Cardinality `json:"cardinality"`
	Options     []Option    `json:"options"`
}

// Task is a single field definition within a job.
type Task struct {
	ID             string          `json:"id"`
	Index          int             `json:"index"`
	Type           TaskType        `json:"type"`
	Label          string          `json:"label"`
	Required       bool            `json:"required"`
	MultipleChoice *MultipleChoice `json:"multipleChoice,omitempty"`
}

// Option returns the option with the given id.
func (t *Task) Option(id string) (Option, bool) {
	if t.MultipleChoice == nil {
		return Option{}, false
	}
	for _, opt := range t.MultipleChoice.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// Job is the field schema a submission's data and deltas are interpreted
// against.
type Job struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Tasks map[string]*Task `json:"tasks"`
}

// Task returns the task definition for the given id.
func (j *Job) Task(id string) (*Task, bool) {
	if j == nil {
		return nil, false
	}
	task, ok := j.Tasks[id]
	return task, ok
}

// Survey groups jobs and is the schema context every mutation resolves
// against.
type Survey struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Jobs        map[string]*Job `json:"jobs"`
}

// Job returns the job with the given id.
func (s *Survey) Job(id string) (*Job, bool) {
	if s == nil {
		return nil, false
	}
	job, ok := s.Jobs[id]
	return job, ok
}
