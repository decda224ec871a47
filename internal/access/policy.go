// Package access decides what a viewer may play inside a program.
//
// Everything here is pure: no I/O, no shared state, no panics. Callers load
// programs and lectures first and surface load errors themselves; a failed
// load must never be turned into a gated or playable decision.
package access

import (
	"strconv"
	"strings"

	"github.com/nexus-academy/catalog-service/internal/models"
)

type Outcome string

const (
	Playable      Outcome = "PLAYABLE"
	LockedPreview Outcome = "LOCKED_PREVIEW"
	GatedWaitlist Outcome = "GATED_WAITLIST"
)

// CourseMode picks between cohort specific and common lectures of a master program.
type CourseMode string

const (
	ModeCohort CourseMode = "cohort"
	ModeCommon CourseMode = "common"
)

// DefaultCohortCount is the size of the generated cohort range offered to
// master viewers that have no cohort assigned.
const DefaultCohortCount = 5

func ParseCourseMode(s string) CourseMode {
	if CourseMode(strings.ToLower(strings.TrimSpace(s))) == ModeCommon {
		return ModeCommon
	}
	return ModeCohort
}

// Viewer is the subset of a user the policy looks at. A nil *Viewer is anonymous.
type Viewer struct {
	ID           string
	Role         models.MembershipRole
	MasterCohort string
	IsAdmin      bool
}

// ViewerFromUser returns nil for a nil user.
func ViewerFromUser(u *models.User) *Viewer {
	if u == nil {
		return nil
	}
	return &Viewer{
		ID:           u.ID,
		Role:         u.Role,
		MasterCohort: u.Cohort(),
		IsAdmin:      u.IsAdmin,
	}
}

func (v *Viewer) role() models.MembershipRole {
	if v == nil {
		return models.RoleFree
	}
	return v.Role
}

func (v *Viewer) cohort() string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(v.MasterCohort)
}

// Selection is the master-program toggle state. It is ignored for member programs.
type Selection struct {
	Mode   CourseMode
	Cohort string
}

// Decision is the result for one lecture. Visible is false when the lecture is
// not part of the current listing at all; such a lecture is never Playable.
type Decision struct {
	Outcome Outcome
	Visible bool
}

// Evaluate decides the outcome for lecture at position index of the program's
// full ordered lecture list. Admin status grants nothing here.
func Evaluate(viewer *Viewer, program *models.Program, lecture *models.Lecture, index int, sel Selection) Decision {
	if program == nil || lecture == nil {
		return Decision{Outcome: LockedPreview}
	}

	switch program.Type {
	case models.ProgramMember:
		return evaluateMember(viewer, lecture, index)
	case models.ProgramMaster:
		return evaluateMaster(viewer, program, lecture, sel)
	default:
		return Decision{Outcome: GatedWaitlist}
	}
}

func evaluateMember(viewer *Viewer, lecture *models.Lecture, index int) Decision {
	d := Decision{Outcome: LockedPreview, Visible: true}

	role := viewer.role()
	if !role.IsValid() || !lecture.Level.IsValid() {
		return d
	}

	if role.HasMemberAccess() || index == 0 {
		d.Outcome = Playable
	}
	return d
}

func evaluateMaster(viewer *Viewer, program *models.Program, lecture *models.Lecture, sel Selection) Decision {
	if !viewer.role().HasMasterAccess() {
		return Decision{Outcome: GatedWaitlist}
	}

	var visible bool
	if EffectiveMode(program, sel.Mode) == ModeCommon {
		visible = lecture.Level == models.LevelMasterCommon
	} else {
		cohort := strings.TrimSpace(sel.Cohort)
		visible = lecture.Level == models.LevelMaster && cohort != "" && lecture.Cohort() == cohort
	}

	if !visible {
		return Decision{Outcome: LockedPreview}
	}
	return Decision{Outcome: Playable, Visible: true}
}

// IsGated reports whether the viewer gets the waitlist form instead of a lecture list.
func IsGated(viewer *Viewer, program *models.Program) bool {
	if program == nil {
		return false
	}
	switch program.Type {
	case models.ProgramMember:
		return false
	case models.ProgramMaster:
		return !viewer.role().HasMasterAccess()
	default:
		return true
	}
}

// EffectiveMode falls back to cohort mode for programs without a common course.
func EffectiveMode(program *models.Program, requested CourseMode) CourseMode {
	if requested == ModeCommon && program != nil && program.HasCommonCourse {
		return ModeCommon
	}
	return ModeCohort
}

// CohortOptions generates "1".."n".
func CohortOptions(n int) []string {
	if n <= 0 {
		n = DefaultCohortCount
	}
	options := make([]string, n)
	for i := range options {
		options[i] = strconv.Itoa(i + 1)
	}
	return options
}

// ResolveCohort picks the cohort a master viewer is shown. An assigned cohort
// always wins; otherwise the requested option is used when it is one of the
// offered options, else the first option.
func ResolveCohort(viewer *Viewer, requested string, options []string) string {
	if c := viewer.cohort(); c != "" {
		return c
	}
	requested = strings.TrimSpace(requested)
	for _, o := range options {
		if o == requested {
			return o
		}
	}
	if len(options) > 0 {
		return options[0]
	}
	return ""
}

// SelectionForLecture is the selection under which a single lecture would be
// listed, used when a lecture is opened directly.
func SelectionForLecture(viewer *Viewer, lecture *models.Lecture, requestedCohort string, cohortCount int) Selection {
	if lecture != nil && lecture.Level == models.LevelMasterCommon {
		return Selection{Mode: ModeCommon}
	}
	return Selection{
		Mode:   ModeCohort,
		Cohort: ResolveCohort(viewer, requestedCohort, CohortOptions(cohortCount)),
	}
}
