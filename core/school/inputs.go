package school

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ja-viss/caipa-connect-sub000/core"
)

// NewTeacher contains information needed to create a Teacher and its User.
type NewTeacher struct {
	FullName       string `json:"fullName" validate:"required,notblank,max=120"`
	CI             string `json:"ci" validate:"required,ci"`
	Email          string `json:"email" validate:"required,email,max=254"`
	Phone          string `json:"phone" validate:"required,phone"`
	Specialization string `json:"specialization" validate:"required,notblank,max=120"`
	Password       string `json:"password" validate:"required"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.FullName = core.CleanString(nt.FullName)
	nt.CI = core.CleanString(nt.CI, true /* lower */)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Specialization = core.CleanString(nt.Specialization)
	return validate.Struct(nt)
}

// UpdateTeacher defines what information may be provided to modify an existing Teacher.
// Empty fields keep their current value.
type UpdateTeacher struct {
	FullName       string `json:"fullName" validate:"omitempty,notblank,max=120"`
	CI             string `json:"ci" validate:"omitempty,ci"`
	Email          string `json:"email" validate:"omitempty,email,max=254"`
	Phone          string `json:"phone" validate:"omitempty,phone"`
	Specialization string `json:"specialization" validate:"omitempty,notblank,max=120"`
}

// Validate fills the blanks of upd from orig and validates it.
func (upd *UpdateTeacher) Validate(validate *validator.Validate, orig Teacher) error {
	upd.FullName = orDefault(core.CleanString(upd.FullName), orig.FullName)
	upd.CI = orDefault(core.CleanString(upd.CI, true /* lower */), orig.CI)
	upd.Email = orDefault(core.CleanString(upd.Email, true /* lower */), orig.Email)
	upd.Phone = orDefault(core.CleanString(upd.Phone), orig.Phone)
	upd.Specialization = orDefault(core.CleanString(upd.Specialization), orig.Specialization)
	return validate.Struct(upd)
}

// StudentInput holds a Student's editable data, for creation and (full) updates.
type StudentInput struct {
	Name             string           `json:"name" validate:"required,notblank,max=120"`
	DOB              string           `json:"dob" validate:"required,datetime=2006-01-02"`
	Gender           string           `json:"gender" validate:"required,notblank,max=30"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	MedicalInfo      MedicalInfo      `json:"medicalInfo"`
	PedagogicalInfo  PedagogicalInfo  `json:"pedagogicalInfo"`
	Representative   Representative   `json:"representative"`
	// RepresentativePassword is used when creating the representative's User.
	// A random one is generated when empty.
	RepresentativePassword string `json:"representativePassword,omitempty"`
}

func (si *StudentInput) Validate(validate *validator.Validate) error {
	si.Name = core.CleanString(si.Name)
	si.DOB = core.CleanString(si.DOB)
	si.Gender = core.CleanString(si.Gender)
	si.EmergencyContact.Name = core.CleanString(si.EmergencyContact.Name)
	si.EmergencyContact.Phone = core.CleanString(si.EmergencyContact.Phone)
	si.EmergencyContact.Relation = core.CleanString(si.EmergencyContact.Relation)
	si.Representative.Name = core.CleanString(si.Representative.Name)
	si.Representative.CI = core.CleanString(si.Representative.CI, true /* lower */)
	si.Representative.Relation = core.CleanString(si.Representative.Relation)
	si.Representative.Phone = core.CleanString(si.Representative.Phone)
	si.Representative.Email = core.CleanString(si.Representative.Email, true /* lower */)
	si.Representative.Address = core.CleanString(si.Representative.Address)

	if err := validate.Struct(si); err != nil {
		return err
	}
	if dob, _ := time.Parse(dateLayout, si.DOB); dob.After(time.Now()) {
		return core.NewValidationError(nil, core.FieldError{Field: "dob", Error: "la fecha de nacimiento no puede estar en el futuro"})
	}
	return nil
}

// BirthDate returns the parsed DOB. Call it on validated input only.
func (si *StudentInput) BirthDate() time.Time {
	dob, _ := time.Parse(dateLayout, si.DOB)
	return dob
}

// AreaInput holds an Area's editable data, for creation and (full) updates.
type AreaInput struct {
	Name        string   `json:"name" validate:"required,notblank,max=120"`
	Description string   `json:"description" validate:"max=2000"`
	TeacherIDs  []string `json:"teacherIds" validate:"dive,required"`
	StudentIDs  []string `json:"studentIds" validate:"dive,required"`
}

func (ai *AreaInput) Validate(validate *validator.Validate) error {
	ai.Name = core.CleanString(ai.Name)
	ai.Description = core.CleanString(ai.Description)
	ai.TeacherIDs = core.UniqueStrings(ai.TeacherIDs)
	ai.StudentIDs = core.UniqueStrings(ai.StudentIDs)
	return validate.Struct(ai)
}

// ClassroomInput holds a Classroom's editable data, for creation and (full) updates.
type ClassroomInput struct {
	Name     string          `json:"name" validate:"required,notblank,max=120"`
	Building string          `json:"building" validate:"required,notblank,max=120"`
	Schedule []ScheduleEntry `json:"schedule" validate:"dive"`
}

func (ci *ClassroomInput) Validate(validate *validator.Validate) error {
	ci.Name = core.CleanString(ci.Name)
	ci.Building = core.CleanString(ci.Building)
	for i := range ci.Schedule {
		ci.Schedule[i].Day = core.CleanString(ci.Schedule[i].Day)
		ci.Schedule[i].StartTime = core.CleanString(ci.Schedule[i].StartTime)
		ci.Schedule[i].EndTime = core.CleanString(ci.Schedule[i].EndTime)
	}
	if err := validate.Struct(ci); err != nil {
		return err
	}

	var fldErrs []core.FieldError
	for i, e := range ci.Schedule {
		if e.StartTime >= e.EndTime {
			fldErrs = append(fldErrs, core.FieldError{
				Field: scheduleField(i, "endTime"),
				Error: "la hora de fin debe ser posterior a la de inicio",
			})
			continue
		}
		for j := 0; j < i; j++ {
			if e.overlaps(ci.Schedule[j]) {
				fldErrs = append(fldErrs, core.FieldError{
					Field: scheduleField(i, "startTime"),
					Error: "el horario se solapa con otra entrada del mismo día",
				})
				break
			}
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

type NewActivityLog struct {
	Date         time.Time `json:"date" validate:"required"`
	Achievements string    `json:"achievements" validate:"required,notblank,max=5000"`
	Challenges   string    `json:"challenges" validate:"max=5000"`
	Observations string    `json:"observations" validate:"max=5000"`
}

func (nl *NewActivityLog) Validate(validate *validator.Validate) error {
	nl.Achievements = core.CleanString(nl.Achievements)
	nl.Challenges = core.CleanString(nl.Challenges)
	nl.Observations = core.CleanString(nl.Observations)
	return validate.Struct(nl)
}

type NewProgressReport struct {
	Date    time.Time `json:"date" validate:"required"`
	Content string    `json:"content" validate:"required,notblank,max=20000"`
	Type    string    `json:"type" validate:"required,notblank,max=60"`
}

func (nr *NewProgressReport) Validate(validate *validator.Validate) error {
	nr.Content = core.CleanString(nr.Content)
	nr.Type = core.CleanString(nr.Type)
	return validate.Struct(nr)
}

type NewEvent struct {
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	Date        time.Time `json:"date" validate:"required"`
	Location    string    `json:"location" validate:"max=200"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.Location = core.CleanString(ne.Location)
	return validate.Struct(ne)
}

func orDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func scheduleField(i int, name string) string {
	return fmt.Sprintf("schedule[%d].%s", i, name)
}
