package models

// Course is the catalog view of a course needed by the engine.
type Course struct {
	ID             int64  `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	InstructorName string `json:"instructorName" yaml:"instructor_name"`
	ModuleCount    int    `json:"moduleCount" yaml:"module_count"`
}

// Learner is the directory view of a user needed to render credentials.
type Learner struct {
	ID          int64  `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"display_name"`
}
