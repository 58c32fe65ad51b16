package dto

import "github.com/noah-isme/fieldsync/internal/models"

// SurveyDefinition is the YAML shape of an imported survey schema.
type SurveyDefinition struct {
	ID          string          `yaml:"id"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Jobs        []JobDefinition `yaml:"jobs"`
}

// JobDefinition is one job inside a survey definition file.
type JobDefinition struct {
	ID    string           `yaml:"id"`
	Name  string           `yaml:"name"`
	Tasks []TaskDefinition `yaml:"tasks"`
}

// TaskDefinition is one field definition inside a job.
type TaskDefinition struct {
	ID             string                    `yaml:"id"`
	Type           string                    `yaml:"type"`
	Label          string                    `yaml:"label"`
	Required       bool                      `yaml:"required"`
	MultipleChoice *MultipleChoiceDefinition `yaml:"multipleChoice"`
}

// MultipleChoiceDefinition carries option lists for multiple-choice tasks.
type MultipleChoiceDefinition struct {
	Cardinality string             `yaml:"cardinality"`
	Options     []OptionDefinition `yaml:"options"`
}

// OptionDefinition is a selectable choice.
type OptionDefinition struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// ToModel converts the YAML definition into the domain schema, assigning
// task indexes from file order.
func (d SurveyDefinition) ToModel() *models.Survey {
	survey := &models.Survey{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Jobs:        make(map[string]*models.Job, len(d.Jobs)),
	}
	for _, jobDef := range d.Jobs {
		job := &models.Job{
			ID:    jobDef.ID,
			Name:  jobDef.Name,
			Tasks: make(map[string]*models.Task, len(jobDef.Tasks)),
		}
		for i, taskDef := range jobDef.Tasks {
			task := &models.Task{
				ID:       taskDef.ID,
				Index:    i,
				Type:     models.TaskType(taskDef.Type),
				Label:    taskDef.Label,
				Required: taskDef.Required,
			}
			if taskDef.MultipleChoice != nil {
				mc := &models.MultipleChoice{
					Cardinality: models.Cardinality(taskDef.MultipleChoice.Cardinality),
					Options:     make([]models.Option, 0, len(taskDef.MultipleChoice.Options)),
				}
				for _, optDef := range taskDef.MultipleChoice.Options {
					mc.Options = append(mc.Options, models.Option{ID: optDef.ID, Label: optDef.Label})
				}
				task.MultipleChoice = mc
			}
			job.Tasks[task.ID] = task
		}
		survey.Jobs[job.ID] = job
	}
	return survey
}
