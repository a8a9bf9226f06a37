package config

type StorageConfig struct {
	// TasksDir holds tasks/<year>/<etap>/*.pdf reference materials
	TasksDir string
	// TasksIndexPath is the JSON index of known problems
	TasksIndexPath string
	// UploadsDir receives submitted solution images
	UploadsDir string
	// PromptsDir holds the grading prompt templates per etap
	PromptsDir string
}

func NewStorageConfig() *StorageConfig {
	return &StorageConfig{
		TasksDir:       getEnv("TASKS_DIR", "tasks"),
		TasksIndexPath: getEnv("TASKS_INDEX_PATH", "tasks_index.json"),
		UploadsDir:     getEnv("UPLOADS_DIR", "uploads"),
		PromptsDir:     getEnv("PROMPTS_DIR", "prompts"),
	}
}
