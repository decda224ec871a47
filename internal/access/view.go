package access

import (
	"strings"

	"github.com/nexus-academy/catalog-service/internal/models"
)

// ViewRequest carries the toggles of a program detail page.
type ViewRequest struct {
	Mode        CourseMode
	Cohort      string
	Category    string
	CohortCount int
}

type LectureView struct {
	Lecture *models.Lecture
	Index   int
	Outcome Outcome
}

// ProgramView is a program detail page after the policy has been applied.
type ProgramView struct {
	Program           *models.Program
	Gated             bool
	Mode              CourseMode
	Cohort            string
	CohortOptions     []string
	Categories        []string
	Category          string
	Lectures          []LectureView
	CanManageLectures bool
}

// BuildProgramView evaluates every lecture of the program. lectures must be the
// program's complete list in display order; the category filter is applied
// afterwards and only removes entries, so an index is never shifted by it.
func BuildProgramView(viewer *Viewer, program *models.Program, lectures []models.Lecture, req ViewRequest) *ProgramView {
	view := &ProgramView{
		Program:           program,
		Category:          normalizeCategory(req.Category),
		CanManageLectures: viewer != nil && viewer.IsAdmin,
		Lectures:          []LectureView{},
		Categories:        []string{},
	}

	if program == nil {
		return view
	}
	if IsGated(viewer, program) {
		view.Gated = true
		return view
	}

	var sel Selection
	if program.Type == models.ProgramMaster {
		options := CohortOptions(req.CohortCount)
		sel = Selection{
			Mode:   EffectiveMode(program, req.Mode),
			Cohort: ResolveCohort(viewer, req.Cohort, options),
		}
		view.Mode = sel.Mode
		if sel.Mode == ModeCohort {
			view.Cohort = sel.Cohort
			if viewer.cohort() != "" {
				view.CohortOptions = []string{viewer.cohort()}
			} else {
				view.CohortOptions = options
			}
		}
	}

	seen := make(map[string]struct{})
	for i := range lectures {
		lecture := &lectures[i]
		d := Evaluate(viewer, program, lecture, i, sel)
		if !d.Visible {
			continue
		}

		if lecture.Category != "" {
			key := strings.ToLower(lecture.Category)
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				view.Categories = append(view.Categories, lecture.Category)
			}
		}

		if view.Category != "" && !strings.EqualFold(lecture.Category, view.Category) {
			continue
		}

		view.Lectures = append(view.Lectures, LectureView{
			Lecture: lecture,
			Index:   i,
			Outcome: d.Outcome,
		})
	}

	return view
}

func normalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if strings.EqualFold(c, "all") {
		return ""
	}
	return c
}
