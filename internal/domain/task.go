package domain

import "fmt"

// Etap identifiers for the three OMJ competition stages.
const (
	Etap1 = "etap1"
	Etap2 = "etap2"
	Etap3 = "etap3"
)

// ProblemKey identifies one competition problem
type ProblemKey struct {
	Year   string `json:"year"`
	Etap   string `json:"etap"`
	Number int    `json:"number"`
}

// String returns the canonical key form, e.g. "2024_etap2_1"
func (k ProblemKey) String() string {
	return fmt.Sprintf("%s_%s_%d", k.Year, k.Etap, k.Number)
}

// ValidScores returns the discrete score set the jury uses for an etap.
// Etap 1 grades 0/1/3, etaps 2 and 3 grade 0/2/5/6.
func ValidScores(etap string) []int {
	if etap == Etap1 {
		return []int{0, 1, 3}
	}
	return []int{0, 2, 5, 6}
}

// MaxScore returns the highest attainable score for an etap
func MaxScore(etap string) int {
	scores := ValidScores(etap)
	return scores[len(scores)-1]
}

// TaskInfo describes one problem as listed in the task index
type TaskInfo struct {
	Year        string `json:"year"`
	Etap        string `json:"etap"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	HasSolution bool   `json:"hasSolution"`
}

// ProblemMaterials bundles the reference documents handed to the
// grading provider. SolutionPDFPath may be empty when no official
// solution exists for the stage.
type ProblemMaterials struct {
	Key             ProblemKey
	TaskPDFPath     string
	SolutionPDFPath string
}
